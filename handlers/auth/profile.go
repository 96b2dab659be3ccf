package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/utils/middleware"
	"github.com/sahilchouksey/course-storefront/utils/response"
)

// GetProfile returns the signed-in user.
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	return response.Success(c, toUserResponse(user))
}
