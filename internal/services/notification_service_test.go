package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/database/testutil"
	"github.com/genodch/pilltrack/internal/models"
)

func newNotificationFixture(t *testing.T) (*gorm.DB, *NotificationService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)
	return db, svc
}

func TestEnqueueValidation(t *testing.T) {
	_, svc := newNotificationFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)

	_, err := svc.Enqueue(ctx, EnqueueInput{Type: models.NotificationReminder, RecipientID: " ", ScheduledFor: at})
	require.Error(t, err)

	_, err = svc.Enqueue(ctx, EnqueueInput{Type: "sms", RecipientID: "user-1", ScheduledFor: at})
	require.Error(t, err)

	item, err := svc.Enqueue(ctx, EnqueueInput{
		Type:          models.NotificationReminder,
		RecipientID:   "user-1",
		ScheduledFor:  at,
		AttemptNumber: 0, // clamped to 1
	})
	require.NoError(t, err)
	assert.Equal(t, 1, item.AttemptNumber)
	assert.False(t, item.Processed())
	assert.True(t, item.ScheduledFor.Equal(at))
}

func TestResolveClaimsExactlyOnce(t *testing.T) {
	db, svc := newNotificationFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)

	item, err := svc.Enqueue(ctx, EnqueueInput{
		Type:         models.NotificationReminder,
		RecipientID:  "user-1",
		ScheduledFor: at,
	})
	require.NoError(t, err)

	claimed, err := svc.Resolve(ctx, item.ID, false, "endpoint gone", at.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = svc.Resolve(ctx, item.ID, true, "", at.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed, "a resolved item must never be mutated again")

	var reloaded models.NotificationQueueItem
	require.NoError(t, db.First(&reloaded, "id = ?", item.ID).Error)
	require.True(t, reloaded.Processed())
	require.NotNil(t, reloaded.Success)
	assert.False(t, *reloaded.Success)
	assert.Equal(t, "endpoint gone", reloaded.ErrorMessage)
	assert.True(t, reloaded.ProcessedAt.Equal(at.Add(time.Minute)))
}

func TestEnsureQueuedReusesOpenIntent(t *testing.T) {
	_, svc := newNotificationFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	obligationID := "ob-1"

	input := EnqueueInput{
		ObligationID:  &obligationID,
		Type:          models.NotificationReminder,
		RecipientID:   "user-1",
		ScheduledFor:  at,
		AttemptNumber: 2,
	}

	first, err := svc.EnsureQueued(ctx, input)
	require.NoError(t, err)

	second, err := svc.EnsureQueued(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A resolved intent is closed; the next call opens a fresh one.
	claimed, err := svc.Resolve(ctx, first.ID, false, "push service unavailable", at.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	third, err := svc.EnsureQueued(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	items, err := svc.ListForObligation(ctx, obligationID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestLogAttempt(t *testing.T) {
	db, svc := newNotificationFixture(t)
	ctx := context.Background()
	obligationID := "ob-1"

	require.Error(t, svc.LogAttempt(ctx, AttemptRecord{RecipientID: "  "}))

	require.NoError(t, svc.LogAttempt(ctx, AttemptRecord{
		ObligationID: &obligationID,
		RecipientID:  "user-1",
		Type:         models.NotificationReminder,
		Success:      true,
	}))
	require.NoError(t, svc.LogAttempt(ctx, AttemptRecord{
		ObligationID: &obligationID,
		RecipientID:  "partner-1",
		Type:         models.NotificationPartnerAlert,
		Success:      false,
		ErrorMessage: "endpoint gone",
	}))

	var entries []models.NotificationLog
	require.NoError(t, db.Where("obligation_id = ?", obligationID).Order("created_at").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Success)
	assert.False(t, entries[1].Success)
	assert.Equal(t, "endpoint gone", entries[1].ErrorMessage)
}

func TestResolveOrphans(t *testing.T) {
	db, svc := newNotificationFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)

	vanished := models.Obligation{UserID: "user-1", ScheduledTime: now.Add(-time.Hour), Status: models.ObligationPending}
	require.NoError(t, db.Create(&vanished).Error)
	terminal := models.Obligation{UserID: "user-2", ScheduledTime: now.Add(-time.Hour), Status: models.ObligationTaken}
	require.NoError(t, db.Create(&terminal).Error)
	live := models.Obligation{UserID: "user-3", ScheduledTime: now.Add(-time.Hour), Status: models.ObligationPending}
	require.NoError(t, db.Create(&live).Error)

	enqueue := func(obligationID string, scheduledFor time.Time) *models.NotificationQueueItem {
		item, err := svc.Enqueue(ctx, EnqueueInput{
			ObligationID: &obligationID,
			Type:         models.NotificationReminder,
			RecipientID:  "recipient",
			ScheduledFor: scheduledFor,
		})
		require.NoError(t, err)
		return item
	}

	orphaned := enqueue(vanished.ID, now.Add(-30*time.Minute))
	closed := enqueue(terminal.ID, now.Add(-30*time.Minute))
	open := enqueue(live.ID, now.Add(-30*time.Minute))
	future := enqueue(terminal.ID, now.Add(30*time.Minute))

	require.NoError(t, db.Delete(&models.Obligation{}, "id = ?", vanished.ID).Error)

	resolved, err := svc.ResolveOrphans(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resolved)

	reload := func(id string) models.NotificationQueueItem {
		var item models.NotificationQueueItem
		require.NoError(t, db.First(&item, "id = ?", id).Error)
		return item
	}

	got := reload(orphaned.ID)
	require.True(t, got.Processed())
	require.NotNil(t, got.Success)
	assert.False(t, *got.Success)
	assert.Equal(t, "referenced obligation no longer exists", got.ErrorMessage)

	got = reload(closed.ID)
	require.True(t, got.Processed())
	assert.Equal(t, "obligation already taken", got.ErrorMessage)

	assert.False(t, reload(open.ID).Processed(), "items for live obligations stay open")
	assert.False(t, reload(future.ID).Processed(), "future items are not evaluated yet")

	// Idempotent: a second pass finds nothing left to close.
	resolved, err = svc.ResolveOrphans(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resolved)
}
