package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/models"
	"github.com/genodch/pilltrack/internal/push"
	"github.com/genodch/pilltrack/internal/services"
	"github.com/genodch/pilltrack/pkg/logger"
	"github.com/genodch/pilltrack/pkg/metrics"
)

const (
	firstReminderTitle    = "Time to take your pill"
	followUpReminderTitle = "Reminder: pill still pending"
	reminderBody          = "Tap to update your status."
)

// Escalator walks every pending obligation past its scheduled time and sends
// the reminder its elapsed time calls for, at most once per step.
type Escalator struct {
	obligations   *services.ObligationService
	notifications *services.NotificationService
	users         *services.UserService
	sender        push.Sender
	clk           clock.Clock
	cfg           Config
	log           *zap.Logger
}

// NewEscalator constructs an Escalator.
func NewEscalator(obligations *services.ObligationService, notifications *services.NotificationService, users *services.UserService, sender push.Sender, clk clock.Clock, cfg Config) (*Escalator, error) {
	if obligations == nil || notifications == nil || users == nil {
		return nil, errors.New("escalator: all services are required")
	}
	if sender == nil {
		return nil, errors.New("escalator: push sender is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Escalator{
		obligations:   obligations,
		notifications: notifications,
		users:         users,
		sender:        sender,
		clk:           clk,
		cfg:           cfg.withDefaults(),
		log:           logger.WithModule("escalator"),
	}, nil
}

// Run evaluates due reminders and returns how many were delivered.
func (e *Escalator) Run(ctx context.Context) (int, error) {
	now := e.clk.Now()

	// Queue items whose obligation vanished or already resolved are dead
	// intents; close them out before evaluating live obligations.
	if resolved, err := e.notifications.ResolveOrphans(ctx, now); err != nil {
		e.log.Warn("orphan queue resolution failed", zap.Error(err))
	} else if resolved > 0 {
		e.log.Info("resolved orphaned queue items", zap.Int64("count", resolved))
	}

	pending, err := e.obligations.PendingDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("escalator: %w", err)
	}

	sent := 0
	for i := range pending {
		obligation := &pending[i]
		if delivered := e.process(ctx, obligation, now); delivered {
			sent++
		}
	}

	e.log.Info("reminder escalation finished", zap.Int("sent", sent), zap.Int("evaluated", len(pending)))
	return sent, nil
}

// process evaluates one obligation and reports whether a reminder landed.
func (e *Escalator) process(ctx context.Context, obligation *models.Obligation, now time.Time) bool {
	elapsed := now.Sub(obligation.ScheduledTime)
	step := ExpectedStep(elapsed, e.cfg.EscalationOffsets)

	// reminder_count > step means this step (or a later one) was already
	// sent, possibly by an overlapping run. Nothing to do.
	if step < 0 || obligation.ReminderCount > step {
		return false
	}

	user, err := e.users.Get(ctx, obligation.UserID)
	if err != nil {
		e.log.Error("failed to load obligation owner",
			zap.String("obligation_id", obligation.ID), zap.Error(err))
		return false
	}

	if !user.HasPushSubscription() {
		// Not a failure: the obligation stays eligible every run until the
		// partner-alert delay times it out.
		e.log.Debug("no push subscription on file", zap.String("user_id", user.ID))
		metrics.RemindersSent.WithLabelValues("skipped").Inc()
		return false
	}

	attempt := obligation.ReminderCount + 1
	item, err := e.notifications.EnsureQueued(ctx, services.EnqueueInput{
		ObligationID:  &obligation.ID,
		Type:          models.NotificationReminder,
		RecipientID:   user.ID,
		ScheduledFor:  obligation.ScheduledTime.Add(time.Duration(e.cfg.EscalationOffsets[step]) * time.Minute),
		AttemptNumber: attempt,
	})
	if err != nil {
		e.log.Error("failed to ensure queue item",
			zap.String("obligation_id", obligation.ID), zap.Error(err))
		return false
	}

	title := firstReminderTitle
	if obligation.ReminderCount > 0 {
		title = followUpReminderTitle
	}

	sendErr := e.sender.Send(ctx, user.PushSubscription, push.Payload{
		Title: title,
		Body:  reminderBody,
		URL:   e.cfg.ReminderURL,
	})

	success := sendErr == nil
	message := ""
	if sendErr != nil {
		message = sendErr.Error()
	}

	if err := e.notifications.LogAttempt(ctx, services.AttemptRecord{
		ObligationID: &obligation.ID,
		RecipientID:  user.ID,
		Type:         models.NotificationReminder,
		Success:      success,
		ErrorMessage: message,
	}); err != nil {
		e.log.Warn("failed to log delivery attempt", zap.Error(err))
	}
	if _, err := e.notifications.Resolve(ctx, item.ID, success, message, now); err != nil {
		e.log.Warn("failed to resolve queue item", zap.String("item_id", item.ID), zap.Error(err))
	}

	if !success {
		// Leave reminder_count untouched so the next run retries this step.
		e.log.Warn("reminder delivery failed",
			zap.String("obligation_id", obligation.ID),
			zap.Int("attempt", attempt),
			zap.Error(sendErr),
		)
		metrics.RemindersSent.WithLabelValues("failure").Inc()
		return false
	}

	advanced, err := e.obligations.RecordReminder(ctx, obligation.ID, obligation.ReminderCount, now)
	if err != nil {
		e.log.Error("failed to record reminder",
			zap.String("obligation_id", obligation.ID), zap.Error(err))
		return false
	}
	if !advanced {
		// An overlapping run advanced the counter between our guard check and
		// the write; the user may have received a duplicate push but the
		// stored state stays consistent.
		e.log.Warn("reminder bookkeeping lost a write race", zap.String("obligation_id", obligation.ID))
		return false
	}

	metrics.RemindersSent.WithLabelValues("success").Inc()
	e.log.Info("reminder sent",
		zap.String("obligation_id", obligation.ID),
		zap.String("user_id", user.ID),
		zap.Int("attempt", attempt),
	)
	return true
}
