package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMaintenanceMetricsCountsRunsAndRemovals(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMaintenanceMetrics(reg)

	metrics.ObserveRun("stale-carts", 10*time.Millisecond, nil)
	metrics.ObserveRun("stale-carts", 10*time.Millisecond, errors.New("db down"))
	metrics.AddRemoved("stale-carts", 3)
	metrics.AddRemoved("stale-carts", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cart_maintenance_runs_total", map[string]string{"job": "stale-carts", "result": ResultFailure}); err != nil || got != 1 {
		t.Fatalf("expected 1 failed run, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_maintenance_entries_removed_total", map[string]string{"job": "stale-carts"}); err != nil || got != 3 {
		t.Fatalf("expected 3 removed entries, got %f (%v)", got, err)
	}
}

func TestMaintenanceMetricsNilSafe(t *testing.T) {
	var nilMetrics *MaintenanceMetrics
	nilMetrics.ObserveRun("x", time.Second, nil)
	nilMetrics.AddRemoved("x", 1)
	NewMaintenanceMetrics(nil).ObserveRun("x", time.Second, nil)
}
