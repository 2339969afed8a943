package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/models"
	apperrors "github.com/genodch/pilltrack/pkg/errors"
)

// ErrAlreadyResolved signals that a confirmation arrived for an obligation
// that already reached a terminal state.
var ErrAlreadyResolved = apperrors.New("OBLIGATION_RESOLVED", "Obligation is already resolved", 409)

// ObligationStats aggregates obligation outcomes over a date range.
type ObligationStats struct {
	Total     int64 `json:"total"`
	Taken     int64 `json:"taken"`
	LateTaken int64 `json:"late_taken"`
	Missed    int64 `json:"missed"`
	Pending   int64 `json:"pending"`
}

// ObligationService owns the pill_tracking table. All writes are narrow
// single-row updates so overlapping job runs stay safe without locks.
type ObligationService struct {
	db *gorm.DB
}

// NewObligationService constructs an ObligationService.
func NewObligationService(db *gorm.DB) (*ObligationService, error) {
	if db == nil {
		return nil, errors.New("obligation service: db is required")
	}
	return &ObligationService{db: db}, nil
}

// Get loads a single obligation by id.
func (s *ObligationService) Get(ctx context.Context, id string) (*models.Obligation, error) {
	ctx = ensureContext(ctx)

	var obligation models.Obligation
	if err := s.db.WithContext(ctx).First(&obligation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("obligation service: load obligation: %w", err)
	}
	return &obligation, nil
}

// FindInWindow returns the user's obligation whose scheduled time falls in the
// supplied day window, or nil when none exists. The window check is by day,
// not exact time, so a mid-day reminder_time change never duplicates a day.
func (s *ObligationService) FindInWindow(ctx context.Context, userID string, window clock.DayWindow) (*models.Obligation, error) {
	ctx = ensureContext(ctx)

	var obligation models.Obligation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND scheduled_time >= ? AND scheduled_time < ?", userID, window.Start, window.End).
		First(&obligation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("obligation service: find in window: %w", err)
	}
	return &obligation, nil
}

// Create inserts a new obligation row. A unique-constraint loss against a
// concurrent run is reported as ErrConflict so callers can treat it as an
// idempotent no-op.
func (s *ObligationService) Create(ctx context.Context, obligation *models.Obligation) error {
	ctx = ensureContext(ctx)

	if obligation == nil {
		return errors.New("obligation service: obligation is required")
	}
	if strings.TrimSpace(obligation.UserID) == "" {
		return errors.New("obligation service: user id is required")
	}
	if obligation.Status == "" {
		obligation.Status = models.ObligationPending
	}

	if err := s.db.WithContext(ctx).Create(obligation).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperrors.ErrConflict.WithInternal(err)
		}
		return fmt.Errorf("obligation service: create obligation: %w", err)
	}
	return nil
}

// PendingDue returns pending obligations whose scheduled time has passed,
// ordered oldest first, the working set of the escalation policy.
func (s *ObligationService) PendingDue(ctx context.Context, now time.Time) ([]models.Obligation, error) {
	ctx = ensureContext(ctx)

	var obligations []models.Obligation
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_time <= ?", models.ObligationPending, now).
		Order("scheduled_time").
		Find(&obligations).Error; err != nil {
		return nil, fmt.Errorf("obligation service: list pending due: %w", err)
	}
	return obligations, nil
}

// PendingUnalerted returns pending obligations past the partner-alert cutoff
// whose partner has not been alerted yet.
func (s *ObligationService) PendingUnalerted(ctx context.Context, cutoff time.Time) ([]models.Obligation, error) {
	ctx = ensureContext(ctx)

	var obligations []models.Obligation
	if err := s.db.WithContext(ctx).
		Where("status = ? AND partner_alerted = ? AND scheduled_time <= ?",
			models.ObligationPending, false, cutoff).
		Order("scheduled_time").
		Find(&obligations).Error; err != nil {
		return nil, fmt.Errorf("obligation service: list pending unalerted: %w", err)
	}
	return obligations, nil
}

// RecordReminder advances the reminder bookkeeping after a successful
// delivery. The previous count is part of the predicate, so of two
// overlapping runs only one write lands; the loser sees zero rows affected.
func (s *ObligationService) RecordReminder(ctx context.Context, id string, previousCount int, at time.Time) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Obligation{}).
		Where("id = ? AND reminder_count = ?", id, previousCount).
		Updates(map[string]any{
			"reminder_count":   previousCount + 1,
			"last_reminder_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("obligation service: record reminder: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkPartnerAlerted latches the partner_alerted flag without touching the
// status, used when no deliverable partner exists and retrying is futile.
func (s *ObligationService) MarkPartnerAlerted(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Obligation{}).
		Where("id = ? AND partner_alerted = ?", id, false).
		Update("partner_alerted", true)
	if result.Error != nil {
		return false, fmt.Errorf("obligation service: mark partner alerted: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkLateEscalated records a delivered partner alert: the flag latches and
// the obligation leaves the reminder loop as late_taken. The pill taker may
// still self-confirm afterwards.
func (s *ObligationService) MarkLateEscalated(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Obligation{}).
		Where("id = ? AND partner_alerted = ? AND status = ?", id, false, models.ObligationPending).
		Updates(map[string]any{
			"partner_alerted": true,
			"status":          models.ObligationLateTaken,
		})
	if result.Error != nil {
		return false, fmt.Errorf("obligation service: mark late escalated: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkMissedBefore transitions every pending or late_taken obligation
// scheduled strictly before the cutoff to missed and reports how many rows
// changed. Terminal taken states are never touched.
func (s *ObligationService) MarkMissedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Obligation{}).
		Where("scheduled_time < ? AND status IN ? AND taken_at IS NULL",
			cutoff, []string{models.ObligationPending, models.ObligationLateTaken}).
		Update("status", models.ObligationMissed)
	if result.Error != nil {
		return 0, fmt.Errorf("obligation service: mark missed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Confirm applies the user-facing confirmation: pending becomes taken, unless
// the partner was already alerted, in which case the late_taken outcome is
// recorded. Confirming an already-taken or missed obligation is rejected.
func (s *ObligationService) Confirm(ctx context.Context, id string, now time.Time) (*models.Obligation, error) {
	ctx = ensureContext(ctx)

	obligation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if obligation.TakenAt != nil || obligation.Status == models.ObligationTaken || obligation.Status == models.ObligationMissed {
		return nil, ErrAlreadyResolved
	}

	status := models.ObligationTaken
	if obligation.PartnerAlerted {
		status = models.ObligationLateTaken
	}

	result := s.db.WithContext(ctx).
		Model(&models.Obligation{}).
		Where("id = ? AND taken_at IS NULL AND status IN ?",
			id, []string{models.ObligationPending, models.ObligationLateTaken}).
		Updates(map[string]any{
			"status":   status,
			"taken_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("obligation service: confirm: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyResolved
	}

	obligation.Status = status
	takenAt := now
	obligation.TakenAt = &takenAt
	return obligation, nil
}

// ListForRange returns a user's obligations scheduled inside [from, to),
// newest first, backing the history and calendar views.
func (s *ObligationService) ListForRange(ctx context.Context, userID string, from, to time.Time) ([]models.Obligation, error) {
	ctx = ensureContext(ctx)

	var obligations []models.Obligation
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND scheduled_time >= ? AND scheduled_time < ?", userID, from, to).
		Order("scheduled_time DESC").
		Find(&obligations).Error; err != nil {
		return nil, fmt.Errorf("obligation service: list for range: %w", err)
	}
	return obligations, nil
}

// StatsForRange aggregates outcome counts for a user inside [from, to).
func (s *ObligationService) StatsForRange(ctx context.Context, userID string, from, to time.Time) (*ObligationStats, error) {
	ctx = ensureContext(ctx)

	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	if err := s.db.WithContext(ctx).
		Model(&models.Obligation{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ? AND scheduled_time >= ? AND scheduled_time < ?", userID, from, to).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("obligation service: stats for range: %w", err)
	}

	stats := &ObligationStats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case models.ObligationTaken:
			stats.Taken = r.Count
		case models.ObligationLateTaken:
			stats.LateTaken = r.Count
		case models.ObligationMissed:
			stats.Missed = r.Count
		case models.ObligationPending:
			stats.Pending = r.Count
		}
	}
	return stats, nil
}
