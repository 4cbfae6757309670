// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
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
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
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

	KBSyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_sync_runs_total",
			Help: "Knowledge base sync runs by direction and outcome",
		},
		[]string{"direction", "status"},
	)

	KBSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kb_sync_duration_seconds",
			Help:    "Duration of knowledge base sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"direction"},
	)

	CQAJobPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cqa_job_polls_total",
			Help: "Status checks issued against remote import and export jobs",
		},
		[]string{"kind"},
	)

	KBSyncRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kb_sync_records",
			Help: "Answers and questions carried by the last sync run per project",
		},
		[]string{"project", "direction", "unit"},
	)
)
