package engine

import (
	"time"

	"github.com/genodch/pilltrack/internal/models"
)

// StateKind tags the derived lifecycle position of an obligation.
type StateKind int

const (
	// StateAwaitingSchedule: the reminder time has not arrived yet.
	StateAwaitingSchedule StateKind = iota
	// StateAwaitingReminder: a reminder for Step is due and unsent.
	StateAwaitingReminder
	// StateBetweenReminders: all due reminders were sent; the next offset has
	// not elapsed yet.
	StateBetweenReminders
	// StateAwaitingPartnerAlert: the alert delay elapsed without confirmation
	// and the partner has not been alerted.
	StateAwaitingPartnerAlert
	// StateResolved: a terminal status was reached.
	StateResolved
)

// ObligationState is the tagged state computed from an obligation's stored
// fields. Step is the 0-based escalation step, meaningful only for
// StateAwaitingReminder.
type ObligationState struct {
	Kind StateKind
	Step int
}

// ExpectedStep returns the largest index i such that elapsed covers
// offsets[i], or -1 when the first offset has not elapsed. Offsets are
// minutes from the scheduled time, sorted ascending. Re-deriving the step
// from elapsed time is what makes overlapping runs idempotent: a reminder is
// only due while reminder_count <= ExpectedStep.
func ExpectedStep(elapsed time.Duration, offsets []int) int {
	step := -1
	for i, minutes := range offsets {
		if elapsed >= time.Duration(minutes)*time.Minute {
			step = i
		}
	}
	return step
}

// DeriveState classifies an obligation at the given instant.
func DeriveState(o *models.Obligation, now time.Time, offsets []int, partnerAlertDelay time.Duration) ObligationState {
	if o.IsTerminal() {
		return ObligationState{Kind: StateResolved}
	}

	elapsed := now.Sub(o.ScheduledTime)
	if elapsed < 0 {
		return ObligationState{Kind: StateAwaitingSchedule}
	}

	if elapsed >= partnerAlertDelay && !o.PartnerAlerted {
		return ObligationState{Kind: StateAwaitingPartnerAlert}
	}

	step := ExpectedStep(elapsed, offsets)
	if step >= 0 && o.ReminderCount <= step {
		return ObligationState{Kind: StateAwaitingReminder, Step: step}
	}
	return ObligationState{Kind: StateBetweenReminders}
}
