package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services"
	authutil "github.com/sahilchouksey/course-storefront/utils/auth"
	"github.com/sahilchouksey/course-storefront/utils/middleware"
	"github.com/sahilchouksey/course-storefront/utils/response"
	"github.com/sahilchouksey/course-storefront/utils/validation"
	"gorm.io/gorm"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	accounts             *services.AccountService
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
}

func NewAuthHandler(db *gorm.DB, accounts *services.AccountService, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		accounts:             accounts,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: bruteForceProtection,
		validator:            validation.NewValidator(),
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,min=2,max=100"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID            uint       `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SessionResponse is returned by every successful sign-in.
type SessionResponse struct {
	User UserResponse `json:"user"`
	*authutil.TokenPair
}

func toUserResponse(user *model.User) UserResponse {
	res := UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
	if user.Name != nil {
		res.Name = *user.Name
	}
	return res
}

func (h *AuthHandler) issueSession(c *fiber.Ctx, user *model.User) error {
	pair, err := h.jwtManager.IssuePair(authutil.Subject{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}
	return response.Success(c, SessionResponse{User: toUserResponse(user), TokenPair: pair})
}

// Register creates an unverified account and mails a confirmation link.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	user, err := h.accounts.Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return response.FromServiceError(c, err)
	}

	return response.Created(c, toUserResponse(user))
}

// VerifyEmailRequest carries the token from the confirmation link.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyEmail redeems a confirmation token.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	user, err := h.accounts.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		return response.FromServiceError(c, err)
	}

	return response.SuccessWithMessage(c, "Email verified", toUserResponse(user))
}
