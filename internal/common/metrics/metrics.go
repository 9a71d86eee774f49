// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Completion parse outcomes.
const (
	OutcomeDirect        = "direct_ok"
	OutcomeRepaired      = "repaired_ok"
	OutcomeEmpty         = "empty"
	OutcomeInvalid       = "invalid"
	OutcomeSchemaInvalid = "schema_invalid"
)

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
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	CompletionParseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_parse_total",
			Help: "LLM completions reconciled, by result kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CompletionRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_repairs_total",
			Help: "Structural repairs applied to LLM completions",
		},
		[]string{"kind", "rule"},
	)

	GenerationDuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_duplicates_total",
			Help: "Generation requests rejected as duplicates, by where they were caught",
		},
		[]string{"kind", "source"},
	)
)
