package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginwatch_events_ingested_total",
			Help: "Total number of events durably stored, by identity outcome",
		},
		[]string{"outcome"},
	)

	ApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loginwatch_apply_duration_seconds",
			Help:    "Duration of the per-event apply transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginwatch_validation_failures_total",
			Help: "Total number of batches rejected by validation",
		},
	)

	PartialBatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginwatch_partial_batch_failures_total",
			Help: "Total number of batches that failed mid-way after committing a prefix",
		},
	)

	// Storage metrics
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginwatch_storage_errors_total",
			Help: "Total number of storage errors, by retryability",
		},
		[]string{"retryable"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginwatch_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Dead-letter metrics
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginwatch_dlq_writes_total",
			Help: "Total number of events handed to the dead-letter queue",
		},
		[]string{"reason"},
	)

	// Report metrics
	ReportsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginwatch_reports_sent_total",
			Help: "Total number of reports delivered, by kind and channel",
		},
		[]string{"kind", "channel"},
	)

	ReportErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginwatch_report_errors_total",
			Help: "Total number of report deliveries that failed",
		},
	)

	// Sweep metrics
	SweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginwatch_sweep_runs_total",
			Help: "Total number of failed-login sweep executions",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loginwatch_sweep_duration_seconds",
			Help:    "Duration of the failed-login sweep in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
