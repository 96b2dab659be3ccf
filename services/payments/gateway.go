// Package payments wraps the card processor behind a small interface so the
// checkout and webhook flows never touch processor SDK types directly.
package payments

import (
	"context"
	"errors"
)

// Metadata keys stamped on every checkout session.
const (
	MetaCourseID      = "courseId"
	MetaUserID        = "userId"
	MetaGuestCheckout = "isGuestCheckout"

	// GuestUserMarker replaces the user id for anonymous checkouts.
	GuestUserMarker = "guest"
)

type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout.session.completed"
	EventAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
	EventPaymentFailed         EventType = "payment_intent.payment_failed"
)

var (
	ErrInvalidSignature = errors.New("payments: webhook signature verification failed")
	ErrNoWebhookSecret  = errors.New("payments: webhook secret is not configured")
	ErrMalformedEvent   = errors.New("payments: malformed event payload")
)

// CheckoutParams describes a single course checkout. UnitAmount is in the
// smallest currency unit.
type CheckoutParams struct {
	ProductName        string
	ProductDescription string
	UnitAmount         int64
	Currency           string
	CustomerEmail      string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
}

// CheckoutSession is the processor-neutral view of a hosted checkout.
type CheckoutSession struct {
	ID              string
	URL             string
	Paid            bool
	PaymentStatus   string
	CustomerEmail   string
	AmountTotal     int64
	Currency        string
	PaymentIntentID string
	Metadata        map[string]string
}

// IsGuest reports whether the session was opened without a signed-in user.
func (s *CheckoutSession) IsGuest() bool {
	return s.Metadata[MetaUserID] == GuestUserMarker || s.Metadata[MetaGuestCheckout] == "true"
}

// Event is a parsed webhook notification.
type Event struct {
	ID   string
	Type EventType
	// Session is set for checkout.session events.
	Session *CheckoutSession
	// The remaining fields are set for payment_intent events. Amount is in
	// the smallest currency unit.
	PaymentIntentID string
	FailureMessage  string
	Amount          int64
	Currency        string
	Metadata        map[string]string
	Raw             []byte
}

// Gateway is the payment processor.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	// ParseEvent verifies the signature header. It returns ErrNoWebhookSecret
	// when no secret is configured and ErrInvalidSignature on mismatch.
	ParseEvent(payload []byte, signature string) (*Event, error)
	// ParseUnverifiedEvent decodes the payload without any signature check.
	ParseUnverifiedEvent(payload []byte) (*Event, error)
}
