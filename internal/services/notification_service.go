package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/models"
)

// EnqueueInput defines attributes for a new notification queue item.
type EnqueueInput struct {
	ObligationID  *string
	Type          string
	RecipientID   string
	ScheduledFor  time.Time
	AttemptNumber int
}

// AttemptRecord captures one delivery attempt for the append-only log.
type AttemptRecord struct {
	ObligationID *string
	RecipientID  string
	Type         string
	Success      bool
	ErrorMessage string
}

// NotificationService owns the notification queue and the append-only
// delivery log. Queue rows are written once at enqueue time and mutated
// exactly once when the delivery step resolves them; nothing is ever deleted.
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db}, nil
}

// Enqueue records the intent to notify a recipient at a given time.
func (s *NotificationService) Enqueue(ctx context.Context, input EnqueueInput) (*models.NotificationQueueItem, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.RecipientID) == "" {
		return nil, errors.New("notification service: recipient id is required")
	}
	if input.Type != models.NotificationReminder && input.Type != models.NotificationPartnerAlert {
		return nil, fmt.Errorf("notification service: unknown notification type %q", input.Type)
	}
	if input.AttemptNumber < 1 {
		input.AttemptNumber = 1
	}

	item := models.NotificationQueueItem{
		ObligationID:  input.ObligationID,
		Type:          input.Type,
		RecipientID:   strings.TrimSpace(input.RecipientID),
		ScheduledFor:  input.ScheduledFor.UTC(),
		AttemptNumber: input.AttemptNumber,
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("notification service: enqueue: %w", err)
	}
	return &item, nil
}

// PendingItem returns the unprocessed queue item for an obligation, type and
// attempt number, or nil when none exists.
func (s *NotificationService) PendingItem(ctx context.Context, obligationID, notificationType string, attempt int) (*models.NotificationQueueItem, error) {
	ctx = ensureContext(ctx)

	var item models.NotificationQueueItem
	err := s.db.WithContext(ctx).
		Where("obligation_id = ? AND type = ? AND attempt_number = ? AND processed_at IS NULL",
			obligationID, notificationType, attempt).
		Order("created_at").
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("notification service: load pending item: %w", err)
	}
	return &item, nil
}

// EnsureQueued returns the unprocessed queue item for the delivery about to be
// attempted, enqueuing one if no open intent exists yet.
func (s *NotificationService) EnsureQueued(ctx context.Context, input EnqueueInput) (*models.NotificationQueueItem, error) {
	ctx = ensureContext(ctx)

	if input.ObligationID != nil {
		item, err := s.PendingItem(ctx, *input.ObligationID, input.Type, input.AttemptNumber)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	return s.Enqueue(ctx, input)
}

// Resolve claims and resolves a queue item in a single guarded write. It
// reports false when another run resolved the item first.
func (s *NotificationService) Resolve(ctx context.Context, itemID string, success bool, errorMessage string, at time.Time) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.NotificationQueueItem{}).
		Where("id = ? AND processed_at IS NULL", itemID).
		Updates(map[string]any{
			"processed_at":  at,
			"success":       success,
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return false, fmt.Errorf("notification service: resolve item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// LogAttempt appends one delivery attempt to the notification log.
func (s *NotificationService) LogAttempt(ctx context.Context, record AttemptRecord) error {
	ctx = ensureContext(ctx)

	entry := models.NotificationLog{
		ObligationID: record.ObligationID,
		RecipientID:  strings.TrimSpace(record.RecipientID),
		Type:         record.Type,
		Success:      record.Success,
		ErrorMessage: record.ErrorMessage,
	}
	if entry.RecipientID == "" {
		return errors.New("notification service: recipient id is required")
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("notification service: log attempt: %w", err)
	}
	return nil
}

// ResolveOrphans marks due, unprocessed queue items whose obligation row has
// vanished or already reached a terminal state as failed bookkeeping entries.
// Returns the number of items resolved.
func (s *NotificationService) ResolveOrphans(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	var items []models.NotificationQueueItem
	if err := s.db.WithContext(ctx).
		Where("processed_at IS NULL AND scheduled_for <= ?", now).
		Find(&items).Error; err != nil {
		return 0, fmt.Errorf("notification service: list due items: %w", err)
	}

	var resolved int64
	for _, item := range items {
		if item.ObligationID == nil {
			continue
		}

		var obligation models.Obligation
		err := s.db.WithContext(ctx).First(&obligation, "id = ?", *item.ObligationID).Error
		message := ""
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			message = "referenced obligation no longer exists"
		case err != nil:
			return resolved, fmt.Errorf("notification service: load obligation: %w", err)
		case obligation.IsTerminal():
			message = fmt.Sprintf("obligation already %s", obligation.Status)
		default:
			continue
		}

		ok, err := s.Resolve(ctx, item.ID, false, message, now)
		if err != nil {
			return resolved, err
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

// ListForObligation returns every queue item recorded for an obligation,
// oldest first, for operational diagnosis.
func (s *NotificationService) ListForObligation(ctx context.Context, obligationID string) ([]models.NotificationQueueItem, error) {
	ctx = ensureContext(ctx)

	var items []models.NotificationQueueItem
	if err := s.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Order("created_at").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("notification service: list for obligation: %w", err)
	}
	return items, nil
}
