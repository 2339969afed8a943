package engine

import "time"

// Defaults mirror the production escalation schedule: reminders at the
// scheduled time and 15, 30 and 60 minutes after it, partner alert at 90.
var defaultEscalationOffsets = []int{0, 15, 30, 60}

const (
	defaultPartnerAlertDelay = 90 * time.Minute
	defaultRunTimeout        = 2 * time.Minute
	defaultReminderURL       = "/home"
	defaultPartnerAlertURL   = "/partner"
)

// Config carries the engine's tunables. It is injected at construction so
// tests can shrink offsets instead of waiting out wall-clock minutes.
type Config struct {
	// EscalationOffsets are reminder offsets in minutes from the scheduled
	// time, sorted ascending. Index i is reminder attempt i+1.
	EscalationOffsets []int

	// PartnerAlertDelay is how long an obligation may stay pending before the
	// linked partner is alerted.
	PartnerAlertDelay time.Duration

	// RunTimeout bounds one full pipeline run so a slow pass cannot overrun
	// the next scheduled trigger. Negative disables the bound.
	RunTimeout time.Duration

	// ReminderURL and PartnerAlertURL are the deep-link targets embedded in
	// the respective notification payloads.
	ReminderURL     string
	PartnerAlertURL string
}

func (c Config) withDefaults() Config {
	if len(c.EscalationOffsets) == 0 {
		c.EscalationOffsets = defaultEscalationOffsets
	}
	if c.PartnerAlertDelay <= 0 {
		c.PartnerAlertDelay = defaultPartnerAlertDelay
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = defaultRunTimeout
	}
	if c.ReminderURL == "" {
		c.ReminderURL = defaultReminderURL
	}
	if c.PartnerAlertURL == "" {
		c.PartnerAlertURL = defaultPartnerAlertURL
	}
	return c
}
