package course

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/utils/middleware"
	"github.com/sahilchouksey/course-storefront/utils/response"
)

// ReviewRequest represents the body of POST /courses/:id/reviews
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,min=10,max=2000"`
}

// ListReviews handles GET /api/v1/courses/:id/reviews
func (h *CourseHandler) ListReviews(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	reviews, err := h.reviews.ListForCourse(c.UserContext(), id)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, reviews)
}

// CreateReview handles POST /api/v1/courses/:id/reviews. Only owners may review, once.
func (h *CourseHandler) CreateReview(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	review, err := h.reviews.Create(c.UserContext(), userID, id, req.Rating, req.Comment)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Created(c, review)
}

// DeleteReview handles DELETE /api/v1/courses/:id/reviews
func (h *CourseHandler) DeleteReview(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	if err := h.reviews.Delete(c.UserContext(), userID, id); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.NoContent(c)
}
