package model

import (
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// Purchase is the entitlement record linking a user to a course.
// (UserID, CourseID) is unique: a user owns a course at most once.
type Purchase struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	UserID                uint           `gorm:"not null;uniqueIndex:idx_purchases_user_course,priority:1" json:"user_id"`
	CourseID              uint           `gorm:"not null;uniqueIndex:idx_purchases_user_course,priority:2;index" json:"course_id"`
	Status                PurchaseStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	StripeSessionID       string         `gorm:"type:varchar(255);index" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string         `gorm:"type:varchar(255);index" json:"stripe_payment_intent_id,omitempty"`
	Amount                float64        `gorm:"not null" json:"amount"`
	Currency              string         `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`

	// Relationships
	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course *Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// IsCompleted reports whether the purchase grants download access.
func (p *Purchase) IsCompleted() bool {
	return p.Status == PurchaseStatusCompleted
}
