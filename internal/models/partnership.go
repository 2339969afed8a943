package models

// Partnership statuses.
const (
	PartnershipPending  = "pending"
	PartnershipActive   = "active"
	PartnershipInactive = "inactive"
)

// Partnership links a pill taker to the partner who is alerted when an
// obligation goes unconfirmed. At most one active partnership exists per pill
// taker; the invite flow that enforces this lives outside the engine, which
// only ever reads these rows.
type Partnership struct {
	BaseModel

	PillTakerID string `gorm:"type:uuid;not null;index" json:"pill_taker_id"`
	PartnerID   string `gorm:"type:uuid;not null;index" json:"partner_id"`

	Status              string `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	NotificationEnabled bool   `gorm:"default:true" json:"notification_enabled"`
}
