package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObligationsCreated counts daily pill obligations materialised by the generator.
	ObligationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilltrack_obligations_created_total",
			Help: "Total number of daily pill obligations created",
		},
	)

	// RemindersSent counts reminder deliveries by outcome (success|failure|skipped).
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilltrack_reminders_sent_total",
			Help: "Total number of reminder notification attempts",
		},
		[]string{"result"},
	)

	// PartnerAlerts counts partner alert deliveries by outcome (success|failure|skipped).
	PartnerAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilltrack_partner_alerts_total",
			Help: "Total number of partner alert attempts",
		},
		[]string{"result"},
	)

	// ObligationsMissed counts obligations reconciled to the missed state.
	ObligationsMissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilltrack_obligations_missed_total",
			Help: "Total number of obligations marked missed by the reconciler",
		},
	)

	// JobRuns measures full pipeline run durations by result (ok|error).
	JobRuns = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pilltrack_job_run_seconds",
			Help:    "Notification job run duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pilltrack_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
