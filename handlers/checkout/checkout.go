package checkout

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/utils/middleware"
	"github.com/sahilchouksey/course-storefront/utils/response"
	"github.com/sahilchouksey/course-storefront/utils/validation"
)

// CheckoutHandler starts hosted checkout sessions
type CheckoutHandler struct {
	checkout  *services.CheckoutService
	validator *validation.Validator
}

func NewCheckoutHandler(checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:  checkout,
		validator: validation.NewValidator(),
	}
}

// CheckoutRequest represents the body of POST /checkout. The price is always
// taken from the stored course.
type CheckoutRequest struct {
	CourseID   uint   `json:"courseId" validate:"required,min=1"`
	GuestEmail string `json:"guestEmail" validate:"omitempty,email,max=255"`
}

// CreateSession handles POST /api/v1/checkout. Signed-in buyers are read
// from the optional auth middleware; everyone else checks out as a guest.
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	in := services.CheckoutRequest{CourseID: req.CourseID, GuestEmail: req.GuestEmail}
	if user, ok := middleware.GetUser(c); ok {
		in.User = user
	}

	result, err := h.checkout.CreateSession(c.UserContext(), in)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, result)
}
