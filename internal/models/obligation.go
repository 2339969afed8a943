package models

import "time"

// Obligation statuses. Taken, late taken and missed are terminal.
const (
	ObligationPending   = "pending"
	ObligationTaken     = "taken"
	ObligationLateTaken = "late_taken"
	ObligationMissed    = "missed"
)

// Obligation is one day's pill-taking commitment for one user. A row is
// materialised once per user per local calendar day by the generator and
// driven through the status machine by the escalation jobs.
type Obligation struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	// ScheduledTime is the absolute UTC instant of the reminder, converted
	// from the user's local reminder time once at creation.
	ScheduledTime time.Time `gorm:"not null;index" json:"scheduled_time"`

	Status string `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`

	// ReminderCount is the number of reminder notifications already delivered.
	// It gates escalation-step eligibility and never decreases.
	ReminderCount  int        `gorm:"default:0" json:"reminder_count"`
	LastReminderAt *time.Time `json:"last_reminder_at"`

	// PartnerAlerted latches true once the partner alert path has run for this
	// obligation, whether or not an alert could actually be delivered.
	PartnerAlerted bool `gorm:"default:false;index" json:"partner_alerted"`

	TakenAt *time.Time `json:"taken_at"`
}

// TableName keeps the historical table name used by the mobile clients.
func (Obligation) TableName() string { return "pill_tracking" }

// IsTerminal reports whether the obligation has reached a final state.
func (o *Obligation) IsTerminal() bool {
	switch o.Status {
	case ObligationTaken, ObligationLateTaken, ObligationMissed:
		return true
	}
	return false
}
