package engine

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/genodch/pilltrack/pkg/logger"
)

const defaultRunSpec = "*/5 * * * *"

// Scheduler triggers pipeline runs from an in-process cron, for deployments
// that have no external scheduler hitting the HTTP trigger. Reminder offsets
// are quantised to 15-minute steps, so a 5-minute spec keeps delivery within
// a third of a step of its target time.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron
	spec   string
	log    *zap.Logger
}

// SchedulerOption customises the Scheduler.
type SchedulerOption func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSpec overrides the cron specification for pipeline runs.
func WithSpec(spec string) SchedulerOption {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// NewScheduler constructs a Scheduler around an existing Runner.
func NewScheduler(runner *Runner, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is required")
	}

	s := &Scheduler{
		runner: runner,
		spec:   defaultRunSpec,
		log:    logger.WithModule("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s, nil
}

// Start registers the run job and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.runner.Run(context.Background()); err != nil {
			s.log.Warn("scheduled pipeline run reported errors", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the scheduler, waiting for any running job to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}
