package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// CartMetrics records cart mutation, persistence and sync activity.
type CartMetrics struct {
	mutations           *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	syncEvents          *prometheus.CounterVec
	saveDuration        *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart state transitions by operation and result.",
	}, []string{"operation", "result"})
	persistenceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persistence_failures_total",
		Help: "Failed cart persistence operations.",
	}, []string{"operation"})
	syncEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_events_total",
		Help: "Cross-context sync events by type and direction.",
	}, []string{"type", "direction"})
	saveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_save_duration_seconds",
		Help:    "Duration of cart saves in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(mutations, persistenceFailures, syncEvents, saveDuration)
	return &CartMetrics{
		mutations:           mutations,
		persistenceFailures: persistenceFailures,
		syncEvents:          syncEvents,
		saveDuration:        saveDuration,
	}
}

// IncMutation counts one transition attempt.
func (c *CartMetrics) IncMutation(operation string, err error) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(operation), result(err)).Inc()
}

// IncPersistenceFailure counts a failed save, load, clear or broadcast.
func (c *CartMetrics) IncPersistenceFailure(operation string) {
	if c == nil || c.persistenceFailures == nil {
		return
	}
	c.persistenceFailures.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncSyncEvent counts a sync event sent or received.
func (c *CartMetrics) IncSyncEvent(eventType, direction string) {
	if c == nil || c.syncEvents == nil {
		return
	}
	c.syncEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(direction)).Inc()
}

// ObserveSave records the duration of one save.
func (c *CartMetrics) ObserveSave(duration time.Duration, err error) {
	if c == nil || c.saveDuration == nil {
		return
	}
	c.saveDuration.WithLabelValues(result(err)).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
