package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks maintenance job runs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	rows     *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_job_duration_seconds",
		Help:    "Duration of maintenance job runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_job_runs_total",
		Help: "Maintenance job runs by result.",
	}, []string{"job", "result"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_rows_deleted_total",
		Help: "Rows removed by maintenance jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, rows)
	return &JobMetrics{duration: duration, runs: runs, rows: rows}
}

func (j *JobMetrics) ObserveRun(job string, elapsed time.Duration, err error) {
	if j == nil || j.runs == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	job = normalizeLabel(job)
	j.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	j.runs.WithLabelValues(job, result).Inc()
}

func (j *JobMetrics) AddRowsDeleted(job string, rows int64) {
	if j == nil || j.rows == nil || rows <= 0 {
		return
	}
	j.rows.WithLabelValues(normalizeLabel(job)).Add(float64(rows))
}
