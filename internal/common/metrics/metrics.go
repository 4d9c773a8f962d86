// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job worker metrics.
var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)

// Board engine metrics.
var (
	// BoardDrops counts drag completions by outcome: reorder, move, noop, stale, invalid.
	BoardDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_drops_total",
			Help: "Drag completions applied to the board, by outcome",
		},
		[]string{"outcome"},
	)

	BoardRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_rollbacks_total",
			Help: "Optimistic moves reverted after a failed status write",
		},
		[]string{"error_code"},
	)

	StatusWritesInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "board_status_writes_inflight",
			Help: "Status writes currently awaiting the backend",
		},
	)

	StatusWritesSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "board_status_writes_superseded_total",
			Help: "Queued status writes replaced by a newer move of the same record",
		},
	)

	ListCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_list_cache_lookups_total",
			Help: "Application list cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
