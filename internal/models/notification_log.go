package models

// NotificationLog is the append-only record of every delivery attempt,
// successful or not. Persistent delivery failure is only diagnosable through
// this table, so rows are never updated or deleted.
type NotificationLog struct {
	BaseModel

	ObligationID *string `gorm:"type:uuid;index" json:"obligation_id"`
	RecipientID  string  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Type         string  `gorm:"type:varchar(32);not null" json:"type"`

	Success      bool   `gorm:"not null" json:"success"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
}

// TableName pins the historical log table name.
func (NotificationLog) TableName() string { return "notification_log" }
