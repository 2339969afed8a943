package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/services"
	"github.com/genodch/pilltrack/pkg/logger"
	"github.com/genodch/pilltrack/pkg/metrics"
)

// Reconciler bounds obligation lifetimes to their calendar day: anything
// still awaiting confirmation once its day has fully elapsed becomes missed.
// It runs before generation so a fresh day's obligation is never mistaken for
// yesterday's leftover.
type Reconciler struct {
	obligations *services.ObligationService
	clk         clock.Clock
	log         *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(obligations *services.ObligationService, clk clock.Clock) (*Reconciler, error) {
	if obligations == nil {
		return nil, errors.New("reconciler: obligation service is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Reconciler{
		obligations: obligations,
		clk:         clk,
		log:         logger.WithModule("reconciler"),
	}, nil
}

// Run marks prior-day unresolved obligations missed and returns the count.
func (r *Reconciler) Run(ctx context.Context) (int64, error) {
	cutoff := clock.StartOfUTCDay(r.clk.Now())

	missed, err := r.obligations.MarkMissedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reconciler: %w", err)
	}

	if missed > 0 {
		metrics.ObligationsMissed.Add(float64(missed))
		r.log.Info("stale obligations marked missed", zap.Int64("count", missed))
	}
	return missed, nil
}
