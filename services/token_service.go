package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/sahilchouksey/course-storefront/utils/auth"
	"gorm.io/gorm"
)

const (
	AutoLoginTokenTTL         = 24 * time.Hour
	EmailVerificationTokenTTL = 24 * time.Hour

	tokenBytes = 32
)

// AutoLoginToken lets a guest buyer sign in once without a password.
type AutoLoginToken struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// EmailVerificationToken confirms ownership of a registered address.
type EmailVerificationToken struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// TokenService issues and redeems single-use verification tokens. Each token
// kind has its own issue and consume operation so one kind can never be
// redeemed as the other.
type TokenService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{db: db, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

// WithTx returns a copy of the service that runs its queries on tx.
func (s *TokenService) WithTx(tx *gorm.DB) *TokenService {
	c := *s
	c.db = tx
	return &c
}

// IssueAutoLogin replaces any outstanding auto-login token for email with a
// new one, so at most one is ever redeemable per address.
func (s *TokenService) IssueAutoLogin(ctx context.Context, email, checkoutSessionID string) (*AutoLoginToken, error) {
	row, err := s.replace(ctx, model.TokenKindAutoLogin, email, checkoutSessionID, AutoLoginTokenTTL)
	if err != nil {
		return nil, err
	}
	return &AutoLoginToken{Token: row.Token, Email: row.Email, ExpiresAt: row.ExpiresAt}, nil
}

// IssueEmailVerification replaces any outstanding verification token for email.
func (s *TokenService) IssueEmailVerification(ctx context.Context, email string) (*EmailVerificationToken, error) {
	row, err := s.replace(ctx, model.TokenKindEmailVerification, email, "", EmailVerificationTokenTTL)
	if err != nil {
		return nil, err
	}
	return &EmailVerificationToken{Token: row.Token, Email: row.Email, ExpiresAt: row.ExpiresAt}, nil
}

// AutoLoginForSession returns the unexpired auto-login token minted for email
// by the given checkout session. A token issued to the same address by a
// different session is never returned.
func (s *TokenService) AutoLoginForSession(ctx context.Context, email, checkoutSessionID string) (*AutoLoginToken, error) {
	if checkoutSessionID == "" {
		return nil, apperror.ErrNotFound
	}

	var row model.VerificationToken
	err := s.db.WithContext(ctx).
		Where("kind = ? AND email = ? AND checkout_session_id = ? AND expires_at > ?",
			model.TokenKindAutoLogin, email, checkoutSessionID, s.now()).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &AutoLoginToken{Token: row.Token, Email: row.Email, ExpiresAt: row.ExpiresAt}, nil
}

// ConsumeAutoLogin redeems an auto-login token. It succeeds at most once.
func (s *TokenService) ConsumeAutoLogin(ctx context.Context, token string) (*AutoLoginToken, error) {
	row, err := s.consume(ctx, model.TokenKindAutoLogin, token)
	if err != nil {
		return nil, err
	}
	return &AutoLoginToken{Token: row.Token, Email: row.Email, ExpiresAt: row.ExpiresAt}, nil
}

// ConsumeEmailVerification redeems an email verification token. It succeeds at most once.
func (s *TokenService) ConsumeEmailVerification(ctx context.Context, token string) (*EmailVerificationToken, error) {
	row, err := s.consume(ctx, model.TokenKindEmailVerification, token)
	if err != nil {
		return nil, err
	}
	return &EmailVerificationToken{Token: row.Token, Email: row.Email, ExpiresAt: row.ExpiresAt}, nil
}

// PurgeExpired deletes every expired token of any kind.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&model.VerificationToken{})
	return res.RowsAffected, res.Error
}

func (s *TokenService) replace(ctx context.Context, kind model.TokenKind, email, sessionID string, ttl time.Duration) (*model.VerificationToken, error) {
	value, err := auth.GenerateToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	row := &model.VerificationToken{
		Token:             value,
		Kind:              kind,
		Email:             email,
		CheckoutSessionID: sessionID,
		ExpiresAt:         now.Add(ttl),
		CreatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("kind = ? AND email = ?", kind, email).Delete(&model.VerificationToken{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store %s token: %w", kind, err)
	}
	return row, nil
}

// consume deletes the row and only reports success to the caller whose
// delete actually removed it, which keeps redemption single-use under races.
func (s *TokenService) consume(ctx context.Context, kind model.TokenKind, token string) (*model.VerificationToken, error) {
	if token == "" {
		return nil, apperror.ErrTokenInvalid
	}

	var row model.VerificationToken
	err := s.db.WithContext(ctx).Where("token = ? AND kind = ?", token, kind).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Where("id = ?", row.ID).Delete(&model.VerificationToken{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperror.ErrTokenInvalid
	}

	if row.IsExpiredAt(s.now()) {
		return nil, apperror.ErrTokenInvalid
	}
	return &row, nil
}
