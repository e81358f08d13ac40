// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_completed_total",
			Help: "Total number of pipeline stages completed",
		},
		[]string{"stage"},
	)

	StageFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failed_total",
			Help: "Total number of pipeline stages failed",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of stage processing in seconds",
		},
		[]string{"stage"},
	)

	GenerationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_generations_active",
			Help: "Number of generation requests currently in flight",
		},
	)

	InvokerAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoker_attempts_total",
			Help: "Total number of HTTP attempts made by the resilient invoker",
		},
		[]string{"target", "outcome"},
	)

	InvokerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoker_retries_total",
			Help: "Total number of retried HTTP attempts",
		},
		[]string{"target"},
	)

	CatalogCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Catalog cache lookups by result",
		},
		[]string{"result"},
	)
)
