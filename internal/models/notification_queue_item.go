package models

import "time"

// Notification types carried by queue items and log entries.
const (
	NotificationReminder     = "reminder"
	NotificationPartnerAlert = "partner_alert"
)

// NotificationQueueItem is a durable record of "notify this recipient about
// this obligation at this time". Items are claimed and resolved exactly once
// and never deleted; together with NotificationLog they form the audit trail.
type NotificationQueueItem struct {
	BaseModel

	// ObligationID is nullable so terminal bookkeeping entries can outlive
	// their obligation row.
	ObligationID *string `gorm:"type:uuid;index" json:"obligation_id"`

	Type        string `gorm:"type:varchar(32);not null;index" json:"type"`
	RecipientID string `gorm:"type:uuid;not null;index" json:"recipient_id"`

	ScheduledFor  time.Time `gorm:"not null;index" json:"scheduled_for"`
	AttemptNumber int       `gorm:"not null;default:1" json:"attempt_number"`

	// ProcessedAt is nil until the delivery step claims the item.
	ProcessedAt  *time.Time `json:"processed_at"`
	Success      *bool      `json:"success"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
}

// TableName pins the historical queue table name.
func (NotificationQueueItem) TableName() string { return "notification_queue" }

// Processed reports whether the item has already been claimed and resolved.
func (i NotificationQueueItem) Processed() bool { return i.ProcessedAt != nil }
