package model

import (
	"math"
	"time"
)

// Course is a sellable digital product backed by a single downloadable archive.
type Course struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Title         string    `gorm:"not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	Price         float64   `gorm:"not null" json:"price"` // major currency units
	OriginalPrice *float64  `json:"original_price,omitempty"`
	Active        bool      `gorm:"not null;index" json:"active"`

	// Object storage location of the course archive
	S3BucketName string `gorm:"type:varchar(255)" json:"-"`
	S3FileKey    string `gorm:"type:varchar(512)" json:"-"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `gorm:"type:varchar(100)" json:"mime_type,omitempty"`

	// Relationships
	Purchases []Purchase `gorm:"foreignKey:CourseID" json:"-"`
	Downloads []Download `gorm:"foreignKey:CourseID" json:"-"`
	Reviews   []Review   `gorm:"foreignKey:CourseID" json:"reviews,omitempty"`
}

// HasFile reports whether an archive has been uploaded for this course.
func (c *Course) HasFile() bool {
	return c.S3FileKey != ""
}

// PriceCents converts Price to the smallest currency unit.
func (c *Course) PriceCents() int64 {
	return int64(math.Round(c.Price * 100))
}
