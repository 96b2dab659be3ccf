package course

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/utils/response"
	"github.com/sahilchouksey/course-storefront/utils/validation"
)

// CourseHandler serves the public catalog and course reviews
type CourseHandler struct {
	courses   *services.CourseService
	reviews   *services.ReviewService
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courses *services.CourseService, reviews *services.ReviewService) *CourseHandler {
	return &CourseHandler{
		courses:   courses,
		reviews:   reviews,
		validator: validation.NewValidator(),
	}
}

// CourseResponse is the public view of a course. Storage details stay internal.
type CourseResponse struct {
	ID            uint           `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Price         float64        `json:"price"`
	OriginalPrice *float64       `json:"originalPrice,omitempty"`
	HasFile       bool           `json:"hasFile"`
	FileSize      int64          `json:"fileSize,omitempty"`
	AverageRating float64        `json:"averageRating"`
	Reviews       []model.Review `json:"reviews,omitempty"`
}

func toCourseResponse(c *model.Course) CourseResponse {
	res := CourseResponse{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Price:         c.Price,
		OriginalPrice: c.OriginalPrice,
		HasFile:       c.HasFile(),
		FileSize:      c.FileSize,
		Reviews:       c.Reviews,
	}
	if len(c.Reviews) > 0 {
		var sum int
		for _, r := range c.Reviews {
			sum += r.Rating
		}
		res.AverageRating = float64(sum) / float64(len(c.Reviews))
	}
	return res
}

func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	courses, err := h.courses.ListActive(c.UserContext())
	if err != nil {
		return response.FromServiceError(c, err)
	}

	out := make([]CourseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, toCourseResponse(&courses[i]))
	}
	return response.Success(c, out)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	course, err := h.courses.Get(c.UserContext(), id, false)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, toCourseResponse(course))
}
