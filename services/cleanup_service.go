package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/utils/auth"
	"gorm.io/gorm"
)

// UnverifiedAccountMaxAge is how long a self-registered account may stay
// unverified before it is removed.
const UnverifiedAccountMaxAge = 7 * 24 * time.Hour

// CleanupResult reports what a maintenance run removed.
type CleanupResult struct {
	DeletedUsers       int64 `json:"deletedUsers"`
	DeletedTokens      int64 `json:"deletedTokens"`
	DeletedRevocations int64 `json:"deletedRevocations"`
}

// CleanupService removes stale accounts and expired credentials.
type CleanupService struct {
	db        *gorm.DB
	tokens    *TokenService
	blacklist *auth.BlacklistService
	now       func() time.Time
}

func NewCleanupService(db *gorm.DB, tokens *TokenService) *CleanupService {
	return &CleanupService{db: db, tokens: tokens, blacklist: auth.NewBlacklistService(db), now: utcNow}
}

// Run deletes unverified accounts older than UnverifiedAccountMaxAge that own
// no purchases, every expired verification token and expired revocations.
// Admin accounts are never removed.
func (s *CleanupService) Run(ctx context.Context) (*CleanupResult, error) {
	cutoff := s.now().Add(-UnverifiedAccountMaxAge)
	result := &CleanupResult{}

	res := s.db.WithContext(ctx).
		Where("email_verified IS NULL AND created_at < ? AND role <> ?", cutoff, model.RoleAdmin).
		Where("NOT EXISTS (SELECT 1 FROM purchases WHERE purchases.user_id = users.id)").
		Delete(&model.User{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete unverified users: %w", res.Error)
	}
	result.DeletedUsers = res.RowsAffected

	deleted, err := s.tokens.PurgeExpired(ctx)
	if err != nil {
		return nil, fmt.Errorf("purge expired tokens: %w", err)
	}
	result.DeletedTokens = deleted

	revoked, err := s.blacklist.CleanupExpiredTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("purge expired revocations: %w", err)
	}
	result.DeletedRevocations = revoked

	log.Printf("[CLEANUP] Removed %d unverified users, %d expired tokens, %d expired revocations",
		result.DeletedUsers, result.DeletedTokens, result.DeletedRevocations)
	return result, nil
}
