package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

const completedPayload = `{
  "id": "evt_123",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "payment_status": "paid",
      "amount_total": 4900,
      "currency": "usd",
      "payment_intent": "pi_1",
      "customer_details": {"email": "Buyer@Example.com"},
      "metadata": {"courseId": "7", "userId": "guest", "isGuestCheckout": "true"}
    }
  }
}`

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestParseEventVerifiesSignature(t *testing.T) {
	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: testSecret})
	payload := []byte(completedPayload)

	ev, err := g.ParseEvent(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	require.NotNil(t, ev.Session)
	assert.True(t, ev.Session.Paid)
	assert.True(t, ev.Session.IsGuest())
	assert.Equal(t, int64(4900), ev.Session.AmountTotal)
	assert.Equal(t, "pi_1", ev.Session.PaymentIntentID)
	assert.Equal(t, "Buyer@Example.com", ev.Session.CustomerEmail)
	assert.Equal(t, "7", ev.Session.Metadata[MetaCourseID])
}

func TestParseEventRejectsBadSignature(t *testing.T) {
	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: testSecret})
	payload := []byte(completedPayload)

	_, err := g.ParseEvent(payload, sign(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = g.ParseEvent(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseEventWithoutSecret(t *testing.T) {
	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test"})

	_, err := g.ParseEvent([]byte(completedPayload), "t=1,v1=abc")
	assert.ErrorIs(t, err, ErrNoWebhookSecret)

	ev, err := g.ParseUnverifiedEvent([]byte(completedPayload))
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", ev.Session.ID)
}

func TestParseUnverifiedEventPaymentFailed(t *testing.T) {
	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test"})
	payload := `{"id":"evt_9","object":"event","type":"payment_intent.payment_failed",
	  "data":{"object":{"id":"pi_9","object":"payment_intent","metadata":{"courseId":"3"},
	  "last_payment_error":{"message":"Your card was declined."}}}}`

	ev, err := g.ParseUnverifiedEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, ev.Type)
	assert.Equal(t, "pi_9", ev.PaymentIntentID)
	assert.Equal(t, "Your card was declined.", ev.FailureMessage)
	assert.Equal(t, "3", ev.Metadata[MetaCourseID])
}

func TestParseUnverifiedEventMalformed(t *testing.T) {
	g := NewStripeGateway(StripeConfig{})
	_, err := g.ParseUnverifiedEvent([]byte("not json"))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
