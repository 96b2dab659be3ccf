package middleware

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/utils/request"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminAuditLog records an audit row for a successful admin mutation.
// Multipart bodies are not captured since they carry the course archive.
func AdminAuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, ok := GetUser(c)
		if !ok {
			return c.Next()
		}

		var newValue datatypes.JSON
		if body := c.Body(); len(body) > 0 && json.Valid(body) {
			newValue = datatypes.JSON(append([]byte(nil), body...))
		}

		err := c.Next()
		if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			return err
		}

		var resourceID uint
		if id, perr := strconv.ParseUint(c.Params("id"), 10, 64); perr == nil {
			resourceID = uint(id)
		}

		entry := model.AdminAuditLog{
			AdminID:     admin.ID,
			Action:      action,
			Resource:    resource,
			ResourceID:  resourceID,
			NewValue:    newValue,
			IPAddress:   request.ClientIP(c),
			UserAgent:   c.Get(fiber.HeaderUserAgent),
			Description: c.Method() + " " + c.Path(),
		}

		if dbErr := db.Create(&entry).Error; dbErr != nil {
			log.Printf("[AUDIT] Failed to record %s on %s: %v", action, resource, dbErr)
		}
		return nil
	}
}
