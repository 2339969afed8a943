package models

import (
	"gorm.io/datatypes"
)

// User roles. Pill takers receive reminders; partners receive alerts.
const (
	RolePillTaker = "pill_taker"
	RolePartner   = "partner"
)

// User describes an account as written by the onboarding flow. The engine
// only reads user rows; all mutation happens in the UI backend.
type User struct {
	BaseModel

	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Role  string `gorm:"type:varchar(32);not null;index" json:"role"`

	// ReminderTime is the local wall-clock time ("HH:MM") at which the daily
	// obligation is scheduled. Empty for partners.
	ReminderTime string `gorm:"type:varchar(8)" json:"reminder_time"`
	Timezone     string `gorm:"type:varchar(64);default:'UTC'" json:"timezone"`

	Active bool `gorm:"default:true;index" json:"active"`

	// PushSubscription holds the browser push subscription payload. Opaque to
	// the engine beyond an existence check; the delivery adapter decodes it.
	PushSubscription datatypes.JSON `json:"push_subscription,omitempty"`
}

// HasPushSubscription reports whether a delivery subscription is on file.
func (u *User) HasPushSubscription() bool {
	return len(u.PushSubscription) > 0 && string(u.PushSubscription) != "null"
}
