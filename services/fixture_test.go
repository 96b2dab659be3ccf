package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/payments"
	"github.com/sahilchouksey/course-storefront/utils/auth"
	"github.com/sahilchouksey/course-storefront/utils/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testWebhookSecret = "whsec_test"
	testAppURL        = "https://shop.example.com"
)

type fixture struct {
	ctx       context.Context
	db        *gorm.DB
	gateway   *testutil.FakeGateway
	store     *testutil.FakeStore
	mailer    *testutil.FakeMailer
	publisher *testutil.FakePublisher
	tokens    *TokenService
	accounts  *AccountService
	webhooks  *WebhookService
	verifier  *SessionVerifier
	checkout  *CheckoutService
	downloads *DownloadService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	f := &fixture{
		ctx:       context.Background(),
		db:        db,
		gateway:   testutil.NewFakeGateway(testWebhookSecret),
		store:     testutil.NewFakeStore(),
		mailer:    &testutil.FakeMailer{},
		publisher: &testutil.FakePublisher{},
	}
	f.tokens = NewTokenService(db)
	f.accounts = NewAccountService(db, f.tokens, f.mailer, testAppURL)
	f.webhooks = NewWebhookService(db, f.gateway, f.accounts, f.tokens, f.store, f.mailer, f.publisher, WebhookConfig{
		PurchaseLinkTTL: 7 * 24 * time.Hour,
		AppURL:          testAppURL,
	})
	f.verifier = NewSessionVerifier(db, f.gateway, f.tokens)
	f.checkout = NewCheckoutService(db, f.gateway, testAppURL, "usd")
	f.downloads = NewDownloadService(db, f.store, 24*time.Hour)
	return f
}

func (f *fixture) createCourse(t *testing.T, title string, price float64, withFile bool) *model.Course {
	t.Helper()
	c := &model.Course{Title: title, Price: price, Active: true}
	if withFile {
		c.S3BucketName = f.store.Bucket()
		c.S3FileKey = "courses/1700000000-" + DownloadFilename(title)
		c.FileSize = 1024
		c.MimeType = "application/zip"
	}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func (f *fixture) createUser(t *testing.T, email string, verified bool) *model.User {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	u := &model.User{Email: email, PasswordHash: &hash, Role: model.RoleUser}
	if verified {
		now := time.Now().UTC()
		u.EmailVerified = &now
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) grantPurchase(t *testing.T, userID, courseID uint, status model.PurchaseStatus) *model.Purchase {
	t.Helper()
	p := &model.Purchase{UserID: userID, CourseID: courseID, Status: status, Amount: 10, Currency: "usd"}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

// guestSession builds a paid guest checkout session for courseID.
func guestSession(id string, courseID uint, email string, amount int64) *payments.CheckoutSession {
	return &payments.CheckoutSession{
		ID:              id,
		Paid:            true,
		PaymentStatus:   "paid",
		CustomerEmail:   email,
		AmountTotal:     amount,
		Currency:        "usd",
		PaymentIntentID: "pi_" + id,
		Metadata: map[string]string{
			payments.MetaCourseID:      strconv.FormatUint(uint64(courseID), 10),
			payments.MetaUserID:        payments.GuestUserMarker,
			payments.MetaGuestCheckout: "true",
		},
	}
}

// memberSession builds a paid checkout session for a signed-in user.
func memberSession(id string, courseID, userID uint, email string, amount int64) *payments.CheckoutSession {
	s := guestSession(id, courseID, email, amount)
	s.Metadata[payments.MetaUserID] = strconv.FormatUint(uint64(userID), 10)
	s.Metadata[payments.MetaGuestCheckout] = "false"
	return s
}

func completedEvent(eventID string, session *payments.CheckoutSession) []byte {
	return testutil.EventPayload(payments.Event{
		ID:      eventID,
		Type:    payments.EventCheckoutCompleted,
		Session: session,
	})
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}
