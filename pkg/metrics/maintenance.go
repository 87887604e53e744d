package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaintenanceMetrics covers the scheduled cart store maintenance jobs.
type MaintenanceMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	removed  *prometheus.CounterVec
}

func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return &MaintenanceMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_maintenance_runs_total",
		Help: "Maintenance job executions by job and result.",
	}, []string{"job", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_maintenance_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	removed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_maintenance_entries_removed_total",
		Help: "Stored cart entries removed by maintenance jobs.",
	}, []string{"job"})
	reg.MustRegister(runs, duration, removed)
	return &MaintenanceMetrics{runs: runs, duration: duration, removed: removed}
}

// ObserveRun records one job execution.
func (m *MaintenanceMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.runs.WithLabelValues(job, result(err)).Inc()
	m.duration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *MaintenanceMetrics) AddRemoved(job string, count int64) {
	if m == nil || m.removed == nil || count <= 0 {
		return
	}
	m.removed.WithLabelValues(normalizeLabel(job)).Add(float64(count))
}
