package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/payments"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/sahilchouksey/course-storefront/utils/validation"
	"gorm.io/gorm"
)

// Clients poll verification with a fixed delay because the webhook that
// writes the purchase may land after the browser returns from checkout.
const (
	VerifyMaxAttempts = 5
	VerifyRetryDelay  = 2 * time.Second
)

// VerifyResult is what the success page needs. Purchase is nil until the
// webhook has written the entitlement.
type VerifyResult struct {
	Purchase       *model.Purchase `json:"purchase"`
	AutoLoginToken string          `json:"autoLoginToken,omitempty"`
	GuestCheckout  bool            `json:"isGuestCheckout"`
	Pending        bool            `json:"pending"`
}

// SessionVerifier answers "did my payment go through" for a returning browser.
// It only reads: entitlement is written exclusively by the webhook.
type SessionVerifier struct {
	db      *gorm.DB
	gateway payments.Gateway
	tokens  *TokenService
}

func NewSessionVerifier(db *gorm.DB, gateway payments.Gateway, tokens *TokenService) *SessionVerifier {
	return &SessionVerifier{db: db, gateway: gateway, tokens: tokens}
}

func (v *SessionVerifier) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", apperror.ErrValidation)
	}

	session, err := v.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrUpstream, err)
	}
	if !session.Paid {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.PaymentStatus, apperror.ErrPaymentIncomplete)
	}

	courseID, err := strconv.ParseUint(session.Metadata[payments.MetaCourseID], 10, 64)
	if err != nil || courseID == 0 {
		return nil, fmt.Errorf("%w: session has no course", apperror.ErrValidation)
	}

	result := &VerifyResult{GuestCheckout: session.IsGuest(), Pending: true}
	email := validation.NormalizeEmail(session.CustomerEmail)

	if result.GuestCheckout && email != "" {
		token, err := v.tokens.AutoLoginForSession(ctx, email, session.ID)
		switch {
		case err == nil:
			result.AutoLoginToken = token.Token
		case !errors.Is(err, apperror.ErrNotFound):
			log.Printf("[CHECKOUT] Failed to look up auto-login token for %s: %v", email, err)
		}
	}

	userID, err := v.buyerID(ctx, session, email)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return result, nil
	}

	var purchase model.Purchase
	err = v.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusCompleted).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Purchase = &purchase
	result.Pending = false
	return result, nil
}

func (v *SessionVerifier) buyerID(ctx context.Context, session *payments.CheckoutSession, email string) (uint, error) {
	if !session.IsGuest() {
		if id, err := strconv.ParseUint(session.Metadata[payments.MetaUserID], 10, 64); err == nil {
			return uint(id), nil
		}
	}
	if email == "" {
		return 0, nil
	}

	var user model.User
	err := v.db.WithContext(ctx).Select("id").Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return user.ID, err
}

// PollVerify retries Verify with a fixed delay until the purchase appears or
// attempts run out. The last result is returned either way.
func PollVerify(ctx context.Context, v *SessionVerifier, sessionID string, attempts int, delay time.Duration) (*VerifyResult, error) {
	if attempts < 1 {
		attempts = 1
	}

	var last *VerifyResult
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return last, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := v.Verify(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		last = result
		if result.Purchase != nil {
			return result, nil
		}
	}
	return last, nil
}
