package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a customer or administrator account.
// PasswordHash is nil for accounts that can only sign in through an auto-login link.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  *string    `json:"-"` // Never expose password in JSON
	Name          *string    `json:"name,omitempty"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	Role          string     `gorm:"type:varchar(20);default:'user'" json:"role"` // user, admin
	TokenVersion  int        `gorm:"default:0" json:"-"`                          // Increment to invalidate all user tokens

	// Relationships
	Purchases []Purchase `gorm:"foreignKey:UserID" json:"-"`
}

// IsVerified reports whether the user has confirmed their email address.
func (u *User) IsVerified() bool {
	return u.EmailVerified != nil
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName falls back to the email address when no name is set.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}
