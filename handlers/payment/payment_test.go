package payment

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/services/payments"
	"github.com/sahilchouksey/course-storefront/utils/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "whsec_handler"

type env struct {
	app     *fiber.App
	db      *gorm.DB
	gateway *testutil.FakeGateway
	course  *model.Course
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway(secret)
	store := testutil.NewFakeStore()
	mail := &testutil.FakeMailer{}
	tokens := services.NewTokenService(db)
	accounts := services.NewAccountService(db, tokens, mail, "https://shop.example.com")
	webhooks := services.NewWebhookService(db, gateway, accounts, tokens, store, mail, nil, services.WebhookConfig{
		PurchaseLinkTTL: 7 * 24 * time.Hour,
	})
	verifier := services.NewSessionVerifier(db, gateway, tokens)

	h := NewPaymentHandler(webhooks, verifier)
	app := fiber.New()
	app.Post("/payments/webhook", h.Webhook)
	app.Post("/payments/verify-session", h.VerifySession)

	course := &model.Course{Title: "Go", Price: 49, Active: true, S3FileKey: "courses/1-go.zip"}
	require.NoError(t, db.Create(course).Error)

	return &env{app: app, db: db, gateway: gateway, course: course}
}

func (e *env) session(id string) *payments.CheckoutSession {
	return &payments.CheckoutSession{
		ID:            id,
		Paid:          true,
		PaymentStatus: "paid",
		CustomerEmail: "guest@example.com",
		AmountTotal:   4900,
		Currency:      "usd",
		Metadata: map[string]string{
			payments.MetaCourseID:      strconv.FormatUint(uint64(e.course.ID), 10),
			payments.MetaUserID:        payments.GuestUserMarker,
			payments.MetaGuestCheckout: "true",
		},
	}
}

func webhook(t *testing.T, e *env, payload []byte, sig string) int {
	t.Helper()
	status, _ := testutil.Do(t, e.app, testutil.Request{
		Method:  http.MethodPost,
		Path:    "/payments/webhook",
		Raw:     payload,
		Headers: map[string]string{SignatureHeader: sig},
	})
	return status
}

func TestWebhookHandler(t *testing.T) {
	e := setup(t)
	payload := testutil.EventPayload(payments.Event{ID: "evt_1", Type: payments.EventCheckoutCompleted, Session: e.session("cs_1")})

	assert.Equal(t, http.StatusBadRequest, webhook(t, e, payload, "forged"))
	assert.Equal(t, http.StatusOK, webhook(t, e, payload, secret))
	assert.Equal(t, http.StatusOK, webhook(t, e, payload, secret))

	var n int64
	require.NoError(t, e.db.Model(&model.Purchase{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestWebhookHandler_MissingMetadataStillAcknowledged(t *testing.T) {
	e := setup(t)
	s := e.session("cs_2")
	s.Metadata = map[string]string{}
	payload := testutil.EventPayload(payments.Event{ID: "evt_2", Type: payments.EventCheckoutCompleted, Session: s})

	assert.Equal(t, http.StatusOK, webhook(t, e, payload, secret))
}

func TestVerifySessionHandler(t *testing.T) {
	e := setup(t)

	unpaid := e.session("cs_unpaid")
	unpaid.Paid = false
	e.gateway.PutSession(unpaid)
	status, res := testutil.Do(t, e.app, testutil.Request{Method: http.MethodPost, Path: "/payments/verify-session", Body: fiber.Map{"sessionId": "cs_unpaid"}})
	assert.Equal(t, http.StatusPaymentRequired, status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "PAYMENT_INCOMPLETE", res.Error.Code)

	status, _ = testutil.Do(t, e.app, testutil.Request{Method: http.MethodPost, Path: "/payments/verify-session", Body: fiber.Map{}})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	paid := e.session("cs_paid")
	e.gateway.PutSession(paid)
	require.Equal(t, http.StatusOK, webhook(t, e, testutil.EventPayload(payments.Event{ID: "evt_paid", Type: payments.EventCheckoutCompleted, Session: paid}), secret))

	status, res = testutil.Do(t, e.app, testutil.Request{Method: http.MethodPost, Path: "/payments/verify-session", Body: fiber.Map{"sessionId": "cs_paid"}})
	require.Equal(t, http.StatusOK, status)

	var result services.VerifyResult
	testutil.DecodeData(t, res, &result)
	assert.False(t, result.Pending)
	assert.NotNil(t, result.Purchase)
	assert.NotEmpty(t, result.AutoLoginToken)

}
