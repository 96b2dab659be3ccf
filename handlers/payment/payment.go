package payment

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/sahilchouksey/course-storefront/utils/response"
	"github.com/sahilchouksey/course-storefront/utils/validation"
)

// SignatureHeader carries the processor's webhook signature.
const SignatureHeader = "Stripe-Signature"

// PaymentHandler receives processor webhooks and answers post-checkout polls
type PaymentHandler struct {
	webhooks  *services.WebhookService
	verifier  *services.SessionVerifier
	validator *validation.Validator
}

func NewPaymentHandler(webhooks *services.WebhookService, verifier *services.SessionVerifier) *PaymentHandler {
	return &PaymentHandler{
		webhooks:  webhooks,
		verifier:  verifier,
		validator: validation.NewValidator(),
	}
}

// Webhook handles POST /api/v1/payments/webhook. Signature failures get a
// 400. Events that cannot be fulfilled are acknowledged so the processor
// stops retrying; only storage failures ask for a redelivery.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	// The body must be verified byte for byte, so it is copied before fasthttp reuses the buffer
	payload := append([]byte(nil), c.Body()...)

	result, err := h.webhooks.Process(c.UserContext(), payload, c.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, apperror.ErrSignatureInvalid) {
			return response.Error(c, fiber.StatusBadRequest, "Webhook signature verification failed", "INVALID_SIGNATURE")
		}
		log.Printf("[WEBHOOK] Processing failed: %v", err)
		return response.InternalServerError(c, "Webhook processing failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"received":  true,
		"duplicate": result.Duplicate,
	})
}

// VerifySessionRequest represents the body of POST /payments/verify-session
type VerifySessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=255"`
}

// VerifySession handles POST /api/v1/payments/verify-session. It never
// writes; a pending result tells the client to poll again.
func (h *PaymentHandler) VerifySession(c *fiber.Ctx) error {
	var req VerifySessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.verifier.Verify(c.UserContext(), req.SessionID)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, result)
}
