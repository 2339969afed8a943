package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/models"
	"github.com/genodch/pilltrack/internal/services"
	apperrors "github.com/genodch/pilltrack/pkg/errors"
	"github.com/genodch/pilltrack/pkg/logger"
	"github.com/genodch/pilltrack/pkg/metrics"
)

// Generator materialises one obligation per active pill taker per local
// calendar day and enqueues the primary reminder for it.
type Generator struct {
	users         *services.UserService
	obligations   *services.ObligationService
	notifications *services.NotificationService
	clk           clock.Clock
	log           *zap.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(users *services.UserService, obligations *services.ObligationService, notifications *services.NotificationService, clk clock.Clock) (*Generator, error) {
	if users == nil || obligations == nil || notifications == nil {
		return nil, errors.New("generator: all services are required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Generator{
		users:         users,
		obligations:   obligations,
		notifications: notifications,
		clk:           clk,
		log:           logger.WithModule("generator"),
	}, nil
}

// Run ensures today's obligation exists for every eligible pill taker and
// returns the number created. A single user's failure never aborts the batch.
func (g *Generator) Run(ctx context.Context) (int, error) {
	users, err := g.users.ActivePillTakers(ctx)
	if err != nil {
		return 0, fmt.Errorf("generator: %w", err)
	}

	now := g.clk.Now()
	created := 0

	for _, user := range users {
		tod, err := clock.ParseTimeOfDay(user.ReminderTime)
		if err != nil {
			g.log.Warn("skipping user with malformed reminder time",
				zap.String("user_id", user.ID),
				zap.String("reminder_time", user.ReminderTime),
			)
			continue
		}

		loc, err := clock.LoadLocation(user.Timezone)
		if err != nil {
			g.log.Warn("skipping user with unknown timezone",
				zap.String("user_id", user.ID),
				zap.String("timezone", user.Timezone),
			)
			continue
		}

		window := clock.LocalDayWindow(now, loc)
		existing, err := g.obligations.FindInWindow(ctx, user.ID, window)
		if err != nil {
			g.log.Error("failed to query existing obligation",
				zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		if existing != nil {
			continue // already materialised for this local day
		}

		obligation := models.Obligation{
			UserID:        user.ID,
			ScheduledTime: clock.At(now, tod, loc),
			Status:        models.ObligationPending,
		}

		if err := g.obligations.Create(ctx, &obligation); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				continue // lost the race against an overlapping run
			}
			g.log.Error("failed to create obligation",
				zap.String("user_id", user.ID), zap.Error(err))
			continue
		}

		if _, err := g.notifications.Enqueue(ctx, services.EnqueueInput{
			ObligationID:  &obligation.ID,
			Type:          models.NotificationReminder,
			RecipientID:   user.ID,
			ScheduledFor:  obligation.ScheduledTime,
			AttemptNumber: 1,
		}); err != nil {
			g.log.Error("failed to enqueue primary reminder",
				zap.String("obligation_id", obligation.ID), zap.Error(err))
		}

		metrics.ObligationsCreated.Inc()
		created++
	}

	g.log.Info("daily obligations generated", zap.Int("created", created), zap.Int("pill_takers", len(users)))
	return created, nil
}
