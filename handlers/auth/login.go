package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/sahilchouksey/course-storefront/utils/request"
	"github.com/sahilchouksey/course-storefront/utils/response"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles password sign-in
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ip := request.ClientIP(c)

	user, err := h.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.bruteForceProtection.RecordFailure(c.UserContext(), ip)
			return response.Unauthorized(c, "Invalid email or password")
		}
		return response.FromServiceError(c, err)
	}

	h.bruteForceProtection.RecordSuccess(c.UserContext(), ip)
	return h.issueSession(c, user)
}

// AutoLoginRequest carries a one-time token minted after a guest checkout.
type AutoLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

// AutoLogin signs a guest buyer in with their single-use token.
func (h *AuthHandler) AutoLogin(c *fiber.Ctx) error {
	var req AutoLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ip := request.ClientIP(c)

	user, err := h.accounts.LoginWithAutoLoginToken(c.UserContext(), req.Token)
	if err != nil {
		if errors.Is(err, apperror.ErrTokenInvalid) {
			h.bruteForceProtection.RecordFailure(c.UserContext(), ip)
		}
		return response.FromServiceError(c, err)
	}

	h.bruteForceProtection.RecordSuccess(c.UserContext(), ip)
	return h.issueSession(c, user)
}
