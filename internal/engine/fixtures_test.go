package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/database/testutil"
	"github.com/genodch/pilltrack/internal/models"
	"github.com/genodch/pilltrack/internal/push"
	"github.com/genodch/pilltrack/internal/services"
)

// testSubscription is a structurally valid browser push subscription; the
// fake sender never decodes it.
const testSubscription = `{"endpoint":"https://push.example.com/sub/abc","keys":{"p256dh":"BPub","auth":"auth"}}`

type sentPush struct {
	subscription string
	payload      push.Payload
}

// fakeSender records deliveries and can be flipped into a failing mode.
type fakeSender struct {
	mu    sync.Mutex
	sends []sentPush
	fail  bool
}

func (f *fakeSender) Send(_ context.Context, subscription []byte, payload push.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("push service unavailable")
	}
	f.sends = append(f.sends, sentPush{subscription: string(subscription), payload: payload})
	return nil
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSender) sent() []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentPush, len(f.sends))
	copy(out, f.sends)
	return out
}

type harness struct {
	db            *gorm.DB
	users         *services.UserService
	obligations   *services.ObligationService
	notifications *services.NotificationService
	partnerships  *services.PartnershipService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	obligations, err := services.NewObligationService(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db)
	require.NoError(t, err)
	partnerships, err := services.NewPartnershipService(db)
	require.NoError(t, err)

	return &harness{
		db:            db,
		users:         users,
		obligations:   obligations,
		notifications: notifications,
		partnerships:  partnerships,
	}
}

type userSpec struct {
	role         string
	reminderTime string
	timezone     string
	active       bool
	subscribed   bool
}

var userSeq int

func (h *harness) createUser(t *testing.T, spec userSpec) *models.User {
	t.Helper()

	userSeq++
	user := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		Role:         spec.role,
		ReminderTime: spec.reminderTime,
		Timezone:     spec.timezone,
		Active:       spec.active,
	}
	if spec.subscribed {
		user.PushSubscription = datatypes.JSON(testSubscription)
	}
	require.NoError(t, h.db.Create(user).Error)
	return user
}

func (h *harness) createPillTaker(t *testing.T, reminderTime, timezone string) *models.User {
	t.Helper()
	return h.createUser(t, userSpec{
		role:         models.RolePillTaker,
		reminderTime: reminderTime,
		timezone:     timezone,
		active:       true,
		subscribed:   true,
	})
}

func (h *harness) createPartner(t *testing.T, subscribed bool) *models.User {
	t.Helper()
	return h.createUser(t, userSpec{role: models.RolePartner, active: true, subscribed: subscribed})
}

func (h *harness) linkPartner(t *testing.T, pillTakerID, partnerID string, enabled bool) *models.Partnership {
	t.Helper()

	partnership := &models.Partnership{
		PillTakerID:         pillTakerID,
		PartnerID:           partnerID,
		Status:              models.PartnershipActive,
		NotificationEnabled: enabled,
	}
	require.NoError(t, h.db.Create(partnership).Error)
	return partnership
}

func (h *harness) createObligation(t *testing.T, userID string, scheduled time.Time, status string) *models.Obligation {
	t.Helper()

	obligation := &models.Obligation{
		UserID:        userID,
		ScheduledTime: scheduled,
		Status:        status,
	}
	require.NoError(t, h.db.Create(obligation).Error)
	return obligation
}

func (h *harness) reloadObligation(t *testing.T, id string) *models.Obligation {
	t.Helper()

	var obligation models.Obligation
	require.NoError(t, h.db.First(&obligation, "id = ?", id).Error)
	return &obligation
}

func (h *harness) queueItems(t *testing.T, obligationID string) []models.NotificationQueueItem {
	t.Helper()

	items, err := h.notifications.ListForObligation(context.Background(), obligationID)
	require.NoError(t, err)
	return items
}

func (h *harness) logEntries(t *testing.T, obligationID string) []models.NotificationLog {
	t.Helper()

	var entries []models.NotificationLog
	require.NoError(t, h.db.Where("obligation_id = ?", obligationID).Order("created_at").Find(&entries).Error)
	return entries
}

func testEngineConfig() Config {
	return Config{
		EscalationOffsets: []int{0, 15, 30, 60},
		PartnerAlertDelay: 90 * time.Minute,
		RunTimeout:        -1,
	}
}
