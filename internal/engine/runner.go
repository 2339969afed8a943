package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/push"
	"github.com/genodch/pilltrack/internal/services"
	"github.com/genodch/pilltrack/pkg/logger"
	"github.com/genodch/pilltrack/pkg/metrics"
)

// Summary reports what one full pipeline run accomplished.
type Summary struct {
	ObligationsCreated int       `json:"obligations_created"`
	RemindersSent      int       `json:"reminders_sent"`
	AlertsSent         int       `json:"alerts_sent"`
	ObligationsMissed  int64     `json:"obligations_missed"`
	Timestamp          time.Time `json:"timestamp"`
	PhaseErrors        []string  `json:"phase_errors,omitempty"`
}

// Runner executes the pipeline phases in order: reconcile, generate,
// escalate, alert. Phases are independent; one failing is recorded in the
// summary and the rest still run.
type Runner struct {
	reconciler *Reconciler
	generator  *Generator
	escalator  *Escalator
	alerter    *PartnerAlerter
	cfg        Config
	clk        clock.Clock
	log        *zap.Logger
}

// Option customises the Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	clk clock.Clock
}

// WithClock overrides the clock used by the runner and every phase,
// primarily for tests.
func WithClock(clk clock.Clock) Option {
	return func(o *runnerOptions) {
		if clk != nil {
			o.clk = clk
		}
	}
}

// NewRunner wires the full pipeline on top of a database handle and a push
// sender.
func NewRunner(db *gorm.DB, sender push.Sender, cfg Config, opts ...Option) (*Runner, error) {
	if db == nil {
		return nil, errors.New("runner: db is required")
	}
	if sender == nil {
		return nil, errors.New("runner: push sender is required")
	}

	options := runnerOptions{clk: clock.System()}
	for _, opt := range opts {
		opt(&options)
	}
	cfg = cfg.withDefaults()

	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	obligations, err := services.NewObligationService(db)
	if err != nil {
		return nil, err
	}
	notifications, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	partnerships, err := services.NewPartnershipService(db)
	if err != nil {
		return nil, err
	}

	reconciler, err := NewReconciler(obligations, options.clk)
	if err != nil {
		return nil, err
	}
	generator, err := NewGenerator(users, obligations, notifications, options.clk)
	if err != nil {
		return nil, err
	}
	escalator, err := NewEscalator(obligations, notifications, users, sender, options.clk, cfg)
	if err != nil {
		return nil, err
	}
	alerter, err := NewPartnerAlerter(obligations, partnerships, users, notifications, sender, options.clk, cfg)
	if err != nil {
		return nil, err
	}

	return &Runner{
		reconciler: reconciler,
		generator:  generator,
		escalator:  escalator,
		alerter:    alerter,
		cfg:        cfg,
		clk:        options.clk,
		log:        logger.WithModule("runner"),
	}, nil
}

// Run executes one full pass and returns its summary. The returned error
// aggregates phase failures; the summary is valid either way.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	summary := Summary{}
	var errs error

	errs = multierr.Append(errs, r.phase(&summary, "reconcile", func() error {
		missed, err := r.reconciler.Run(ctx)
		summary.ObligationsMissed = missed
		return err
	}))

	errs = multierr.Append(errs, r.phase(&summary, "generate", func() error {
		created, err := r.generator.Run(ctx)
		summary.ObligationsCreated = created
		return err
	}))

	errs = multierr.Append(errs, r.phase(&summary, "escalate", func() error {
		sent, err := r.escalator.Run(ctx)
		summary.RemindersSent = sent
		return err
	}))

	errs = multierr.Append(errs, r.phase(&summary, "alert", func() error {
		sent, err := r.alerter.Run(ctx)
		summary.AlertsSent = sent
		return err
	}))

	summary.Timestamp = r.clk.Now()

	result := "ok"
	if errs != nil {
		result = "error"
	}
	metrics.JobRuns.WithLabelValues(result).Observe(time.Since(started).Seconds())

	r.log.Info("pipeline run finished",
		zap.Int("obligations_created", summary.ObligationsCreated),
		zap.Int("reminders_sent", summary.RemindersSent),
		zap.Int("alerts_sent", summary.AlertsSent),
		zap.Int64("obligations_missed", summary.ObligationsMissed),
		zap.Duration("duration", time.Since(started)),
		zap.Error(errs),
	)

	return summary, errs
}

// phase runs one pipeline stage, containing both errors and panics at the
// stage boundary so the remaining stages still execute.
func (r *Runner) phase(summary *Summary, name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("phase %s panicked: %v", name, rec)
		}
		if err != nil {
			summary.PhaseErrors = append(summary.PhaseErrors, fmt.Sprintf("%s: %v", name, err))
			r.log.Error("pipeline phase failed", zap.String("phase", name), zap.Error(err))
		}
	}()

	err = fn()
	return err
}
