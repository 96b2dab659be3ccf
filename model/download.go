package model

import (
	"time"
)

// Download is an audit row written every time a signed archive link is issued.
type Download struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	URL       string    `gorm:"type:text;not null" json:"-"`
	IPAddress string    `gorm:"type:varchar(64)" json:"ip_address"`
	IssuedAt  time.Time `gorm:"not null;index" json:"issued_at"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`

	// Relationships
	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course *Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}
