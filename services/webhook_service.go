package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/events"
	"github.com/sahilchouksey/course-storefront/services/mailer"
	"github.com/sahilchouksey/course-storefront/services/payments"
	"github.com/sahilchouksey/course-storefront/services/storage"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/sahilchouksey/course-storefront/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookConfig tunes webhook processing.
type WebhookConfig struct {
	// AllowUnverified processes events without a signature check when no
	// webhook secret is configured. Never enabled in production.
	AllowUnverified bool
	// PurchaseLinkTTL is the lifetime of the download link in the access email.
	PurchaseLinkTTL time.Duration
	AppURL          string
}

// WebhookResult describes what a delivery did.
type WebhookResult struct {
	EventID    string
	EventType  payments.EventType
	Duplicate  bool
	Handled    bool
	PurchaseID uint
}

// WebhookService turns payment notifications into entitlements.
type WebhookService struct {
	db        *gorm.DB
	gateway   payments.Gateway
	accounts  *AccountService
	tokens    *TokenService
	store     storage.Store
	mailer    mailer.Mailer
	publisher events.Publisher
	config    WebhookConfig
	now       func() time.Time
}

func NewWebhookService(
	db *gorm.DB,
	gateway payments.Gateway,
	accounts *AccountService,
	tokens *TokenService,
	store storage.Store,
	m mailer.Mailer,
	publisher events.Publisher,
	config WebhookConfig,
) *WebhookService {
	if config.PurchaseLinkTTL <= 0 {
		config.PurchaseLinkTTL = 7 * 24 * time.Hour
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &WebhookService{
		db:        db,
		gateway:   gateway,
		accounts:  accounts,
		tokens:    tokens,
		store:     store,
		mailer:    m,
		publisher: publisher,
		config:    config,
		now:       utcNow,
	}
}

// Process verifies and applies one delivery. A nil error means the processor
// should consider the event delivered. Errors other than ErrSignatureInvalid
// ask the processor to retry, which is safe because the entitlement write is
// an upsert.
func (s *WebhookService) Process(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, verified, err := s.parse(payload, signature)
	if err != nil {
		return nil, err
	}

	result := &WebhookResult{EventID: event.ID, EventType: event.Type}

	record, err := s.record(ctx, event, verified)
	if err != nil {
		return nil, err
	}
	if record != nil && record.IsProcessed() {
		log.Printf("[WEBHOOK] Event %s already processed, skipping", event.ID)
		result.Duplicate = true
		return result, nil
	}

	switch event.Type {
	case payments.EventCheckoutCompleted, payments.EventAsyncPaymentSucceeded:
		result.Handled = true
		result.PurchaseID, err = s.handleCheckoutCompleted(ctx, event)
	case payments.EventPaymentFailed:
		result.Handled = true
		err = s.handlePaymentFailed(ctx, event)
	default:
		log.Printf("[WEBHOOK] Ignoring event %s of type %s", event.ID, event.Type)
	}

	s.finish(ctx, record, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *WebhookService) parse(payload []byte, signature string) (*payments.Event, bool, error) {
	event, err := s.gateway.ParseEvent(payload, signature)
	if err == nil {
		return event, true, nil
	}

	if errors.Is(err, payments.ErrNoWebhookSecret) {
		if !s.config.AllowUnverified {
			log.Printf("[WEBHOOK] Rejecting event: webhook secret not configured")
			return nil, false, fmt.Errorf("%w: webhook secret not configured", apperror.ErrSignatureInvalid)
		}
		log.Printf("[WEBHOOK] WARNING: processing UNVERIFIED event, webhook secret not configured")
		event, err = s.gateway.ParseUnverifiedEvent(payload)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", apperror.ErrSignatureInvalid, err)
		}
		return event, false, nil
	}

	log.Printf("[WEBHOOK] Signature verification failed: %v", err)
	return nil, false, fmt.Errorf("%w: %v", apperror.ErrSignatureInvalid, err)
}

// record upserts the WebhookEvent row for event and returns it.
func (s *WebhookService) record(ctx context.Context, event *payments.Event, verified bool) (*model.WebhookEvent, error) {
	if event.ID == "" {
		return nil, nil
	}

	row := model.WebhookEvent{
		EventID:        event.ID,
		EventType:      string(event.Type),
		SignatureValid: verified,
	}
	if json.Valid(event.Raw) {
		row.Payload = datatypes.JSON(event.Raw)
	}

	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}

	var stored model.WebhookEvent
	if err := db.Where("event_id = ?", event.ID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load webhook event: %w", err)
	}
	return &stored, nil
}

func (s *WebhookService) finish(ctx context.Context, record *model.WebhookEvent, procErr error) {
	if record == nil {
		return
	}

	updates := map[string]interface{}{"processing_error": ""}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	} else {
		updates["processed_at"] = s.now()
	}

	if err := s.db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		log.Printf("[WEBHOOK] Failed to update event %s: %v", record.EventID, err)
	}
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event *payments.Event) (uint, error) {
	session := event.Session
	if session == nil {
		log.Printf("[WEBHOOK] Event %s carries no checkout session", event.ID)
		return 0, nil
	}
	// Delayed payment methods complete the session unpaid and follow up with
	// async_payment_succeeded once the funds clear.
	if !session.Paid {
		log.Printf("[WEBHOOK] Session %s is %s, acknowledging without granting access", session.ID, session.PaymentStatus)
		return 0, nil
	}

	courseID, _ := strconv.ParseUint(session.Metadata[payments.MetaCourseID], 10, 64)
	email := validation.NormalizeEmail(session.CustomerEmail)
	if courseID == 0 || email == "" {
		log.Printf("[WEBHOOK] Session %s missing course id or customer email, acknowledging without action", session.ID)
		return 0, nil
	}

	var course model.Course
	err := s.db.WithContext(ctx).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[WEBHOOK] Session %s references unknown course %d, acknowledging without action", session.ID, courseID)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var (
		user     *model.User
		guest    *GuestAccount
		purchase *model.Purchase
	)
	// Account creation and the grant commit together: a failed grant must not
	// leave behind an account whose generated password was never mailed.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := s.accounts.WithTx(tx)

		var err error
		if session.IsGuest() {
			guest, err = accounts.ProvisionGuest(ctx, email)
			if err != nil {
				return err
			}
			user = guest.User

			// Only an account this session created may be signed into
			// without a password.
			if guest.Created && !user.IsAdmin() {
				if _, err := s.tokens.WithTx(tx).IssueAutoLogin(ctx, email, session.ID); err != nil {
					log.Printf("[WEBHOOK] Failed to issue auto-login token for %s: %v", email, err)
				}
			}
		} else {
			user, err = s.resolveBuyer(ctx, tx, accounts, session, email)
			if err != nil {
				return err
			}
			if user == nil {
				return nil
			}
		}

		purchase, err = s.grant(ctx, tx, user.ID, course.ID, session)
		return err
	})
	if err != nil {
		return 0, err
	}
	if purchase == nil {
		log.Printf("[WEBHOOK] Session %s has no resolvable user, acknowledging without action", session.ID)
		return 0, nil
	}
	log.Printf("[WEBHOOK] Purchase %d completed: user %d course %d session %s", purchase.ID, user.ID, course.ID, session.ID)

	if guest != nil && guest.Created {
		s.sendAccessEmail(ctx, guest, &course)
	}

	if err := s.publisher.PublishPurchaseCompleted(ctx, events.PurchaseCompleted{
		PurchaseID:    purchase.ID,
		UserID:        user.ID,
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		Email:         user.Email,
		Amount:        purchase.Amount,
		Currency:      purchase.Currency,
		GuestCheckout: session.IsGuest(),
		SessionID:     session.ID,
		CompletedAt:   s.now(),
	}); err != nil {
		log.Printf("[WEBHOOK] Failed to publish purchase %d: %v", purchase.ID, err)
	}

	return purchase.ID, nil
}

// resolveBuyer finds the signed-in buyer by metadata id, then by email.
func (s *WebhookService) resolveBuyer(ctx context.Context, tx *gorm.DB, accounts *AccountService, session *payments.CheckoutSession, email string) (*model.User, error) {
	if id, err := strconv.ParseUint(session.Metadata[payments.MetaUserID], 10, 64); err == nil && id > 0 {
		var user model.User
		err := tx.WithContext(ctx).First(&user, id).Error
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user, err := accounts.FindByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// grant writes the entitlement. The (user, course) unique index turns
// redelivered events and re-purchases into updates of the same row.
func (s *WebhookService) grant(ctx context.Context, tx *gorm.DB, userID, courseID uint, session *payments.CheckoutSession) (*model.Purchase, error) {
	purchase := model.Purchase{
		UserID:                userID,
		CourseID:              courseID,
		Status:                model.PurchaseStatusCompleted,
		StripeSessionID:       session.ID,
		StripePaymentIntentID: session.PaymentIntentID,
		Amount:                float64(session.AmountTotal) / 100,
		Currency:              currencyOrDefault(session.Currency),
	}

	db := tx.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "stripe_session_id", "stripe_payment_intent_id", "amount", "currency", "updated_at",
		}),
	}).Create(&purchase).Error
	if err != nil {
		return nil, fmt.Errorf("upsert purchase: %w", err)
	}

	var stored model.Purchase
	if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	return &stored, nil
}

func currencyOrDefault(currency string) string {
	if currency = strings.ToLower(currency); currency == "" {
		return "usd"
	}
	return currency
}

// sendAccessEmail mails a new guest their download link and credentials.
// Failures are logged only; the purchase is already recorded.
func (s *WebhookService) sendAccessEmail(ctx context.Context, guest *GuestAccount, course *model.Course) {
	if !course.HasFile() {
		log.Printf("[WEBHOOK] Course %d has no archive yet, skipping access email to %s", course.ID, guest.User.Email)
		return
	}

	link, err := s.store.SignedURL(course.S3FileKey, s.config.PurchaseLinkTTL, DownloadFilename(course.Title))
	if err != nil {
		log.Printf("[WEBHOOK] Failed to sign access link for course %d: %v", course.ID, err)
		return
	}

	msg := mailer.PurchaseAccess{
		To:          guest.User.Email,
		Name:        guest.User.DisplayName(),
		CourseTitle: course.Title,
		DownloadURL: link,
		ExpiresAt:   s.now().Add(s.config.PurchaseLinkTTL),
		Password:    guest.Password,
		LoginURL:    s.config.AppURL + "/login",
	}
	if err := s.mailer.SendPurchaseAccess(ctx, msg); err != nil {
		log.Printf("[WEBHOOK] Failed to send access email to %s: %v", guest.User.Email, err)
	}
}

// handlePaymentFailed records a failed attempt. The payment intent carries the
// checkout metadata, so a signed-in buyer gets a failed purchase row for the
// course. Guest attempts have no account to attach it to and only flip pending
// rows already tied to the intent. Completed purchases are never downgraded.
func (s *WebhookService) handlePaymentFailed(ctx context.Context, event *payments.Event) error {
	log.Printf("[WEBHOOK] Payment %s failed: %s", event.PaymentIntentID, event.FailureMessage)

	userID, _ := strconv.ParseUint(event.Metadata[payments.MetaUserID], 10, 64)
	courseID, _ := strconv.ParseUint(event.Metadata[payments.MetaCourseID], 10, 64)
	if userID > 0 && courseID > 0 {
		return s.recordFailure(ctx, uint(userID), uint(courseID), event)
	}

	if event.PaymentIntentID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("stripe_payment_intent_id = ? AND status = ?", event.PaymentIntentID, model.PurchaseStatusPending).
		Update("status", model.PurchaseStatusFailed).Error
}

func (s *WebhookService) recordFailure(ctx context.Context, userID, courseID uint, event *payments.Event) error {
	db := s.db.WithContext(ctx)

	var users, courses int64
	if err := db.Model(&model.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
		return err
	}
	if err := db.Model(&model.Course{}).Where("id = ?", courseID).Count(&courses).Error; err != nil {
		return err
	}
	if users == 0 || courses == 0 {
		log.Printf("[WEBHOOK] Payment %s references unknown user %d or course %d, acknowledging without action", event.PaymentIntentID, userID, courseID)
		return nil
	}

	row := model.Purchase{
		UserID:                userID,
		CourseID:              courseID,
		Status:                model.PurchaseStatusFailed,
		StripePaymentIntentID: event.PaymentIntentID,
		Amount:                float64(event.Amount) / 100,
		Currency:              currencyOrDefault(event.Currency),
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "stripe_payment_intent_id", "amount", "currency", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Neq{Column: clause.Column{Table: "purchases", Name: "status"}, Value: model.PurchaseStatusCompleted},
		}},
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record failed purchase: %w", err)
	}
	return nil
}
