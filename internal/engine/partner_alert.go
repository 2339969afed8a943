package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/models"
	"github.com/genodch/pilltrack/internal/push"
	"github.com/genodch/pilltrack/internal/services"
	"github.com/genodch/pilltrack/pkg/logger"
	"github.com/genodch/pilltrack/pkg/metrics"
)

const partnerAlertTitle = "Late Pill Alert"

// PartnerAlerter notifies the linked partner, exactly once, when an
// obligation stays unconfirmed past the alert delay.
type PartnerAlerter struct {
	obligations   *services.ObligationService
	partnerships  *services.PartnershipService
	users         *services.UserService
	notifications *services.NotificationService
	sender        push.Sender
	clk           clock.Clock
	cfg           Config
	log           *zap.Logger
}

// NewPartnerAlerter constructs a PartnerAlerter.
func NewPartnerAlerter(obligations *services.ObligationService, partnerships *services.PartnershipService, users *services.UserService, notifications *services.NotificationService, sender push.Sender, clk clock.Clock, cfg Config) (*PartnerAlerter, error) {
	if obligations == nil || partnerships == nil || users == nil || notifications == nil {
		return nil, errors.New("partner alerter: all services are required")
	}
	if sender == nil {
		return nil, errors.New("partner alerter: push sender is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &PartnerAlerter{
		obligations:   obligations,
		partnerships:  partnerships,
		users:         users,
		notifications: notifications,
		sender:        sender,
		clk:           clk,
		cfg:           cfg.withDefaults(),
		log:           logger.WithModule("partner-alert"),
	}, nil
}

// Run alerts partners of overdue obligations and returns how many alerts were
// delivered.
func (a *PartnerAlerter) Run(ctx context.Context) (int, error) {
	now := a.clk.Now()
	cutoff := now.Add(-a.cfg.PartnerAlertDelay)

	overdue, err := a.obligations.PendingUnalerted(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("partner alerter: %w", err)
	}

	sent := 0
	for i := range overdue {
		obligation := &overdue[i]

		partnership, err := a.partnerships.ActivePartnerFor(ctx, obligation.UserID)
		if err != nil {
			a.log.Error("failed to look up partnership",
				zap.String("obligation_id", obligation.ID), zap.Error(err))
			continue
		}

		if partnership == nil || !partnership.NotificationEnabled {
			// No one to alert, now or on any later run. Latch the flag so the
			// obligation stops surfacing here.
			a.giveUp(ctx, obligation, "no active partnership with notifications enabled")
			continue
		}

		partner, err := a.users.Get(ctx, partnership.PartnerID)
		if err != nil {
			a.log.Error("failed to load partner",
				zap.String("partner_id", partnership.PartnerID), zap.Error(err))
			continue
		}
		if !partner.HasPushSubscription() {
			a.giveUp(ctx, obligation, "partner has no push subscription")
			continue
		}

		item, err := a.notifications.EnsureQueued(ctx, services.EnqueueInput{
			ObligationID:  &obligation.ID,
			Type:          models.NotificationPartnerAlert,
			RecipientID:   partner.ID,
			ScheduledFor:  obligation.ScheduledTime.Add(a.cfg.PartnerAlertDelay),
			AttemptNumber: 1,
		})
		if err != nil {
			a.log.Error("failed to ensure queue item",
				zap.String("obligation_id", obligation.ID), zap.Error(err))
			continue
		}

		sendErr := a.sender.Send(ctx, partner.PushSubscription, push.Payload{
			Title: partnerAlertTitle,
			Body:  fmt.Sprintf("Your partner has not confirmed their %s pill.", a.localTime(ctx, obligation)),
			URL:   a.cfg.PartnerAlertURL,
		})

		success := sendErr == nil
		message := ""
		if sendErr != nil {
			message = sendErr.Error()
		}

		if err := a.notifications.LogAttempt(ctx, services.AttemptRecord{
			ObligationID: &obligation.ID,
			RecipientID:  partner.ID,
			Type:         models.NotificationPartnerAlert,
			Success:      success,
			ErrorMessage: message,
		}); err != nil {
			a.log.Warn("failed to log delivery attempt", zap.Error(err))
		}
		if _, err := a.notifications.Resolve(ctx, item.ID, success, message, now); err != nil {
			a.log.Warn("failed to resolve queue item", zap.String("item_id", item.ID), zap.Error(err))
		}

		if !success {
			// Flag stays false so the next run retries the alert.
			a.log.Warn("partner alert delivery failed",
				zap.String("obligation_id", obligation.ID), zap.Error(sendErr))
			metrics.PartnerAlerts.WithLabelValues("failure").Inc()
			continue
		}

		landed, err := a.obligations.MarkLateEscalated(ctx, obligation.ID)
		if err != nil {
			a.log.Error("failed to mark obligation escalated",
				zap.String("obligation_id", obligation.ID), zap.Error(err))
			continue
		}
		if !landed {
			a.log.Warn("partner alert bookkeeping lost a write race", zap.String("obligation_id", obligation.ID))
			continue
		}

		metrics.PartnerAlerts.WithLabelValues("success").Inc()
		a.log.Info("partner alerted",
			zap.String("obligation_id", obligation.ID),
			zap.String("partner_id", partner.ID),
		)
		sent++
	}

	a.log.Info("partner alerting finished", zap.Int("sent", sent), zap.Int("evaluated", len(overdue)))
	return sent, nil
}

// giveUp latches partner_alerted on obligations that can never be alerted so
// they are not re-evaluated forever.
func (a *PartnerAlerter) giveUp(ctx context.Context, obligation *models.Obligation, reason string) {
	metrics.PartnerAlerts.WithLabelValues("skipped").Inc()
	a.log.Debug("partner alert not deliverable",
		zap.String("obligation_id", obligation.ID),
		zap.String("reason", reason),
	)
	if _, err := a.obligations.MarkPartnerAlerted(ctx, obligation.ID); err != nil {
		a.log.Error("failed to latch partner_alerted",
			zap.String("obligation_id", obligation.ID), zap.Error(err))
	}
}

// localTime renders the obligation's scheduled time in its owner's timezone
// for the alert body. Falls back to UTC when the timezone cannot be resolved.
func (a *PartnerAlerter) localTime(ctx context.Context, obligation *models.Obligation) string {
	owner, err := a.users.Get(ctx, obligation.UserID)
	if err != nil {
		return obligation.ScheduledTime.UTC().Format("15:04")
	}
	loc, err := clock.LoadLocation(owner.Timezone)
	if err != nil {
		return obligation.ScheduledTime.UTC().Format("15:04")
	}
	return obligation.ScheduledTime.In(loc).Format("15:04")
}
