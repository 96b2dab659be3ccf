package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent records every payment processor event received, keyed by the
// processor's event id, so redeliveries can be recognised.
type WebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	EventID         string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         datatypes.JSON `json:"payload"`
	SignatureValid  bool           `gorm:"not null" json:"signature_valid"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName specifies the table name for WebhookEvent
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// IsProcessed reports whether the event already ran to completion.
func (e *WebhookEvent) IsProcessed() bool {
	return e.ProcessedAt != nil
}
