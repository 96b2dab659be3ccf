package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/payments"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/sahilchouksey/course-storefront/utils/validation"
	"gorm.io/gorm"
)

// CheckoutRequest starts a purchase. User is nil for guest checkouts.
type CheckoutRequest struct {
	CourseID   uint
	User       *model.User
	GuestEmail string
}

// CheckoutResult points the browser at the hosted payment page.
type CheckoutResult struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// CheckoutService opens payment sessions. It never writes entitlement rows;
// only the webhook does that.
type CheckoutService struct {
	db       *gorm.DB
	gateway  payments.Gateway
	appURL   string
	currency string
}

func NewCheckoutService(db *gorm.DB, gateway payments.Gateway, appURL, currency string) *CheckoutService {
	if currency == "" {
		currency = "usd"
	}
	return &CheckoutService{db: db, gateway: gateway, appURL: appURL, currency: currency}
}

// CreateSession validates the course and opens a hosted checkout at the
// stored course price. Prices sent by the client are never used.
func (s *CheckoutService) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	var course model.Course
	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", req.CourseID, true).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("course %d: %w", req.CourseID, apperror.ErrCourseNotFound)
	}
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		payments.MetaCourseID: strconv.FormatUint(uint64(course.ID), 10),
	}

	var customerEmail string
	if req.User != nil {
		owned, err := s.hasCompletedPurchase(ctx, req.User.ID, course.ID)
		if err != nil {
			return nil, err
		}
		if owned {
			return nil, fmt.Errorf("course %d: %w", course.ID, apperror.ErrAlreadyPurchased)
		}

		customerEmail = req.User.Email
		metadata[payments.MetaUserID] = strconv.FormatUint(uint64(req.User.ID), 10)
		metadata[payments.MetaGuestCheckout] = "false"
	} else {
		customerEmail = validation.NormalizeEmail(req.GuestEmail)
		if customerEmail != "" {
			exists, err := s.accountExists(ctx, customerEmail)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, fmt.Errorf("guest checkout for %s: %w", customerEmail, apperror.ErrSignInRequired)
			}
		}
		metadata[payments.MetaUserID] = payments.GuestUserMarker
		metadata[payments.MetaGuestCheckout] = "true"
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		ProductName:        course.Title,
		ProductDescription: course.Description,
		UnitAmount:         course.PriceCents(),
		Currency:           s.currency,
		CustomerEmail:      customerEmail,
		SuccessURL:         s.appURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:          fmt.Sprintf("%s/courses/%d", s.appURL, course.ID),
		Metadata:           metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrUpstream, err)
	}

	return &CheckoutResult{SessionID: session.ID, RedirectURL: session.URL}, nil
}

func (s *CheckoutService) hasCompletedPurchase(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

func (s *CheckoutService) accountExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}
