package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/intellisales-pos/internal/cron"
	"github.com/angelmondragon/intellisales-pos/internal/storage"
	"github.com/angelmondragon/intellisales-pos/pkg/config"
	"github.com/angelmondragon/intellisales-pos/pkg/db"
	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/metrics"
	"github.com/angelmondragon/intellisales-pos/pkg/migrate"
	"github.com/angelmondragon/intellisales-pos/pkg/redis"
)

const lockKeyFormat = "intellisales:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if driver := cfg.Storage.StorageDriver(); driver != enums.StorageDriverSQL {
		// redis entries expire on their own and memory carts die with the process
		logg.Info(logg.WithField(ctx, "storage_driver", driver.String()), "cron worker has nothing to sweep")
		return
	}

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	store, err := storage.NewSQL(dbClient.DB())
	if err != nil {
		return err
	}
	defer store.Close()

	lock, closeLock, err := newLock(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer closeLock()

	maintenance := metrics.NewMaintenanceMetrics(prometheus.DefaultRegisterer)
	staleCarts, err := cron.NewStaleCartJob(cron.StaleCartJobParams{
		Store:     store,
		Retention: cfg.Cart.Retention(),
		Logger:    logg,
		Metrics:   maintenance,
	})
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{staleCarts},
		Lock:     lock,
		Metrics:  maintenance,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"interval":  cfg.Cron.Interval.String(),
		"retention": cfg.Cart.Retention().String(),
	}), "starting cron worker")
	return service.Run(ctx)
}

// newLock uses redis when one is configured so replicas share a cycle.
func newLock(ctx context.Context, cfg *config.Config, logg *logger.Logger) (cron.Lock, func(), error) {
	if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		logg.Warn(ctx, "no redis configured; cron lock is local to this process")
		return &cron.LocalLock{}, func() {}, nil
	}
	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	lock, err := cron.NewRedisLock(client, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return lock, func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
