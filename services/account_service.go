package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/mailer"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/sahilchouksey/course-storefront/utils/auth"
	"github.com/sahilchouksey/course-storefront/utils/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuestAccount is the result of provisioning an account for a guest buyer.
// Password is only set when the account was created by this call.
type GuestAccount struct {
	User     *model.User
	Password string
	Created  bool
}

// AccountService owns user creation, password sign-in and token based sign-in.
type AccountService struct {
	db     *gorm.DB
	tokens *TokenService
	mailer mailer.Mailer
	appURL string
	now    func() time.Time
}

func NewAccountService(db *gorm.DB, tokens *TokenService, m mailer.Mailer, appURL string) *AccountService {
	return &AccountService{db: db, tokens: tokens, mailer: m, appURL: appURL, now: utcNow}
}

// WithTx returns a copy of the service whose queries, token writes included,
// run on tx.
func (s *AccountService) WithTx(tx *gorm.DB) *AccountService {
	c := *s
	c.db = tx
	c.tokens = s.tokens.WithTx(tx)
	return &c
}

// FindByEmail looks a user up case-insensitively.
func (s *AccountService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", validation.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates an unverified password account and mails a confirmation link.
func (s *AccountService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	if _, err := s.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("user with email %s: %w", email, apperror.ErrAlreadyExists)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrValidation, err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: &hash,
		Role:         model.RoleUser,
	}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = &name
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueEmailVerification(ctx, email)
	if err != nil {
		log.Printf("[AUTH] Failed to issue verification token for %s: %v", email, err)
		return user, nil
	}

	msg := mailer.EmailVerification{
		To:        email,
		Name:      name,
		VerifyURL: fmt.Sprintf("%s/verify-email?token=%s", s.appURL, url.QueryEscape(token.Token)),
	}
	if err := s.mailer.SendEmailVerification(ctx, msg); err != nil {
		log.Printf("[AUTH] Failed to send verification email to %s: %v", email, err)
	}

	return user, nil
}

// Authenticate checks a password sign-in.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("invalid email or password: %w", apperror.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == nil || auth.VerifyPassword(*user.PasswordHash, password) != nil {
		return nil, fmt.Errorf("invalid email or password: %w", apperror.ErrUnauthorized)
	}
	return user, nil
}

// VerifyEmail redeems a verification token and marks the address verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	redeemed, err := s.tokens.ConsumeEmailVerification(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.FindByEmail(ctx, redeemed.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if user.EmailVerified == nil {
		now := s.now()
		if err := s.db.WithContext(ctx).Model(user).Update("email_verified", now).Error; err != nil {
			return nil, err
		}
		user.EmailVerified = &now
	}
	return user, nil
}

// LoginWithAutoLoginToken redeems an auto-login token for its user.
func (s *AccountService) LoginWithAutoLoginToken(ctx context.Context, token string) (*model.User, error) {
	redeemed, err := s.tokens.ConsumeAutoLogin(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.FindByEmail(ctx, redeemed.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.ErrTokenInvalid
	}
	return user, err
}

// ProvisionGuest returns the account for email, creating a verified account
// with a generated password when none exists. A concurrent delivery creating
// the same user is resolved by re-reading the row, so the insert never fails
// inside a caller's transaction.
func (s *AccountService) ProvisionGuest(ctx context.Context, email string) (*GuestAccount, error) {
	email = validation.NormalizeEmail(email)

	existing, err := s.FindByEmail(ctx, email)
	if err == nil {
		return &GuestAccount{User: existing}, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	password, err := auth.GeneratePassword(auth.GeneratedPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verifiedAt := s.now()
	user := &model.User{
		Email:         email,
		PasswordHash:  &hash,
		EmailVerified: &verifiedAt,
		Role:          model.RoleUser,
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if res.Error != nil {
		return nil, fmt.Errorf("create guest account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := s.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("reload guest account: %w", err)
		}
		return &GuestAccount{User: existing}, nil
	}

	log.Printf("[CHECKOUT] Created guest account %d for %s", user.ID, email)
	return &GuestAccount{User: user, Password: password, Created: true}, nil
}
