package download

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/utils/middleware"
	"github.com/sahilchouksey/course-storefront/utils/request"
	"github.com/sahilchouksey/course-storefront/utils/response"
)

// DownloadHandler issues signed links to purchased archives
type DownloadHandler struct {
	downloads *services.DownloadService
}

func NewDownloadHandler(downloads *services.DownloadService) *DownloadHandler {
	return &DownloadHandler{downloads: downloads}
}

// Generate handles GET /api/v1/downloads/generate/:courseId
func (h *DownloadHandler) Generate(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 64)
	if err != nil || courseID == 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	link, err := h.downloads.Issue(c.UserContext(), services.DownloadRequest{
		UserID:    userID,
		CourseID:  uint(courseID),
		IPAddress: request.ClientIP(c),
	})
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, link)
}

// History handles GET /api/v1/downloads
func (h *DownloadHandler) History(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	downloads, err := h.downloads.History(c.UserContext(), userID, limit)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, downloads)
}
