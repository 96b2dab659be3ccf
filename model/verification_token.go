package model

import (
	"time"
)

// TokenKind separates the two single-use token families sharing the table.
type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindAutoLogin         TokenKind = "auto_login"
)

// VerificationToken is a single-use secret bound to an email address.
type VerificationToken struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Token             string    `gorm:"uniqueIndex;not null;type:varchar(128)" json:"-"`
	Kind              TokenKind `gorm:"type:varchar(32);not null;index:idx_verification_tokens_kind_email,priority:1" json:"kind"`
	Email             string    `gorm:"not null;index:idx_verification_tokens_kind_email,priority:2" json:"email"`
	CheckoutSessionID string    `gorm:"type:varchar(255)" json:"checkout_session_id,omitempty"`
	ExpiresAt         time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName specifies the table name for VerificationToken
func (VerificationToken) TableName() string {
	return "verification_tokens"
}

// IsExpiredAt reports whether the token is no longer valid at the given instant.
func (t *VerificationToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
