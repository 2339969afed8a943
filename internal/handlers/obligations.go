package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/models"
	"github.com/genodch/pilltrack/internal/services"
	apperrors "github.com/genodch/pilltrack/pkg/errors"
	"github.com/genodch/pilltrack/pkg/response"
	"github.com/genodch/pilltrack/pkg/validator"
)

const dateLayout = "2006-01-02"

// ObligationHandler exposes the UI-facing obligation reads and the
// confirmation action. It sits behind the deployment's auth proxy; the engine
// itself carries no session handling.
type ObligationHandler struct {
	obligations *services.ObligationService
	users       *services.UserService
	clk         clock.Clock
}

// NewObligationHandler constructs an obligation handler.
func NewObligationHandler(db *gorm.DB, clk clock.Clock) (*ObligationHandler, error) {
	obligations, err := services.NewObligationService(db)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System()
	}
	return &ObligationHandler{
		obligations: obligations,
		users:       users,
		clk:         clk,
	}, nil
}

type rangeQuery struct {
	From string `form:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Today returns the user's obligation for the current local day, if any.
func (h *ObligationHandler) Today(c *gin.Context) {
	obligation, err := h.todayObligation(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if obligation == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, obligation)
}

// Confirm records that today's pill was taken. An obligation whose partner
// was already alerted resolves as late_taken; anything already terminal is a
// conflict.
func (h *ObligationHandler) Confirm(c *gin.Context) {
	obligation, err := h.todayObligation(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if obligation == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	confirmed, err := h.obligations.Confirm(c.Request.Context(), obligation.ID, h.clk.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, confirmed)
}

// List returns a user's obligations inside an optional date range, newest
// first. The default window is the trailing 30 days.
func (h *ObligationHandler) List(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))

	from, to, err := h.parseRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	obligations, err := h.obligations.ListForRange(c.Request.Context(), userID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, obligations)
}

// Stats returns outcome counts for a user inside an optional date range.
func (h *ObligationHandler) Stats(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))

	from, to, err := h.parseRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.obligations.StatsForRange(c.Request.Context(), userID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// todayObligation resolves the caller's obligation for the current day in
// their own timezone.
func (h *ObligationHandler) todayObligation(c *gin.Context) (*models.Obligation, error) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}

	loc, err := clock.LoadLocation(user.Timezone)
	if err != nil {
		loc = time.UTC
	}

	window := clock.LocalDayWindow(h.clk.Now(), loc)
	return h.obligations.FindInWindow(c.Request.Context(), user.ID, window)
}

func (h *ObligationHandler) parseRange(c *gin.Context) (time.Time, time.Time, error) {
	var query rangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return time.Time{}, time.Time{}, apperrors.NewBadRequest("invalid date range")
	}
	if err := validator.ValidateStruct(query); err != nil {
		return time.Time{}, time.Time{}, apperrors.NewBadRequest(err.Error())
	}

	now := h.clk.Now()
	from := clock.StartOfUTCDay(now.AddDate(0, 0, -30))
	to := clock.StartOfUTCDay(now).AddDate(0, 0, 1)

	if query.From != "" {
		parsed, err := time.ParseInLocation(dateLayout, query.From, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewBadRequest("invalid from date")
		}
		from = parsed
	}
	if query.To != "" {
		parsed, err := time.ParseInLocation(dateLayout, query.To, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewBadRequest("invalid to date")
		}
		to = parsed.AddDate(0, 0, 1) // inclusive end date
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, apperrors.NewBadRequest("date range is empty")
	}
	return from, to, nil
}
