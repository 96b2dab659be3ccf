package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/utils/response"
)

// RequireCronSecret guards maintenance endpoints with a shared bearer secret.
// An empty secret disables the endpoint entirely.
func RequireCronSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return response.Unauthorized(c, "Maintenance endpoint is not configured")
		}

		provided := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return response.Unauthorized(c, "Invalid cron secret")
		}
		return c.Next()
	}
}
