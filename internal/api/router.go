package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/app"
	"github.com/genodch/pilltrack/internal/clock"
	"github.com/genodch/pilltrack/internal/engine"
	"github.com/genodch/pilltrack/internal/handlers"
	"github.com/genodch/pilltrack/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, runner *engine.Runner, cfg *app.Config, clk clock.Clock) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if runner == nil {
		return nil, fmt.Errorf("pipeline runner must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Scheduler-facing trigger, guarded by the shared cron secret.
	jobHandler, err := handlers.NewJobHandler(runner)
	if err != nil {
		return nil, err
	}
	jobs := r.Group("/internal/jobs")
	jobs.Use(middleware.CronAuth(cfg.Engine.CronSecret))
	{
		jobs.POST("/run", jobHandler.Run)
	}

	// UI-facing obligation reads and the confirmation action.
	obligationHandler, err := handlers.NewObligationHandler(db, clk)
	if err != nil {
		return nil, err
	}
	api := r.Group("/api")
	{
		users := api.Group("/users/:id")
		users.GET("/obligations", obligationHandler.List)
		users.GET("/obligations/today", obligationHandler.Today)
		users.POST("/obligations/today/confirm", obligationHandler.Confirm)
		users.GET("/obligations/stats", obligationHandler.Stats)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
