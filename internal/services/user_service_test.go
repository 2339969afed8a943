package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/genodch/pilltrack/internal/database/testutil"
	"github.com/genodch/pilltrack/internal/models"
	apperrors "github.com/genodch/pilltrack/pkg/errors"
)

func TestUserGet(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	user := models.User{Email: "taker@example.com", Role: models.RolePillTaker, Active: true}
	require.NoError(t, db.Create(&user).Error)

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.Get(ctx, "b7f0c7b2-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Get(ctx, "  ")
	require.Error(t, err)
}

func TestActivePillTakers(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	eligible := models.User{Email: "a@example.com", Role: models.RolePillTaker, ReminderTime: "09:00", Active: true}
	require.NoError(t, db.Create(&eligible).Error)
	require.NoError(t, db.Create(&models.User{Email: "b@example.com", Role: models.RolePillTaker, ReminderTime: "09:00", Active: false}).Error)
	require.NoError(t, db.Create(&models.User{Email: "c@example.com", Role: models.RolePillTaker, ReminderTime: "", Active: true}).Error)
	require.NoError(t, db.Create(&models.User{Email: "d@example.com", Role: models.RolePartner, ReminderTime: "09:00", Active: true}).Error)

	users, err := svc.ActivePillTakers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, eligible.ID, users[0].ID)
}

func TestHasPushSubscription(t *testing.T) {
	user := models.User{}
	assert.False(t, user.HasPushSubscription())

	user.PushSubscription = datatypes.JSON("null")
	assert.False(t, user.HasPushSubscription())

	user.PushSubscription = datatypes.JSON(`{"endpoint":"https://push.example.com/sub"}`)
	assert.True(t, user.HasPushSubscription())
}
