package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genodch/pilltrack/internal/engine"
	"github.com/genodch/pilltrack/pkg/response"
)

// JobHandler exposes the externally triggered pipeline run.
type JobHandler struct {
	runner *engine.Runner
}

// NewJobHandler constructs a job handler around the pipeline runner.
func NewJobHandler(runner *engine.Runner) (*JobHandler, error) {
	if runner == nil {
		return nil, errors.New("job handler: runner is required")
	}
	return &JobHandler{runner: runner}, nil
}

// Run executes one full pipeline pass and returns its summary. Phase errors
// are reported inside the summary; the run as a whole still answers 200 so
// the scheduler does not retry a partially applied pass.
func (h *JobHandler) Run(c *gin.Context) {
	summary, err := h.runner.Run(c.Request.Context())
	if err != nil && summary.ObligationsCreated == 0 && summary.RemindersSent == 0 &&
		summary.AlertsSent == 0 && summary.ObligationsMissed == 0 && len(summary.PhaseErrors) == 4 {
		// Every phase failed outright; surface it as a server error.
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}
