package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/metrics"
)

const StaleCartJobName = "stale-cart-retention"

// Sweeper deletes stored carts not written since cutoff. *storage.SQL
// satisfies it.
type Sweeper interface {
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type StaleCartJobParams struct {
	Store     Sweeper
	Retention time.Duration
	Logger    *logger.Logger
	Metrics   *metrics.MaintenanceMetrics
	Now       func() time.Time
}

// StaleCartJob removes abandoned carts that outlived the retention window.
// Carts younger than that are left alone even when already expired; expiry
// is enforced when a register loads its cart.
type StaleCartJob struct {
	store     Sweeper
	retention time.Duration
	logg      *logger.Logger
	metrics   *metrics.MaintenanceMetrics
	now       func() time.Time
}

func NewStaleCartJob(params StaleCartJobParams) (*StaleCartJob, error) {
	if params.Store == nil {
		return nil, errors.New("sweeper required")
	}
	if params.Retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &StaleCartJob{
		store:     params.Store,
		retention: params.Retention,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

func (j *StaleCartJob) Name() string { return StaleCartJobName }

func (j *StaleCartJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	removed, err := j.store.DeleteUpdatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete carts before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.metrics.AddRemoved(StaleCartJobName, removed)
	if removed > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"removed": removed,
			"cutoff":  cutoff,
		}), "cron.stale_carts.removed")
	}
	return nil
}
