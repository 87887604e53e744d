package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/intellisales-pos/api/routes"
	"github.com/angelmondragon/intellisales-pos/internal/cart"
	"github.com/angelmondragon/intellisales-pos/internal/registers"
	"github.com/angelmondragon/intellisales-pos/pkg/config"
	"github.com/angelmondragon/intellisales-pos/pkg/env"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/metrics"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	store, err := openBackend(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(context.Background(), "error closing cart storage", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(reg)

	registry, err := registers.New(registers.Options{
		Namespace: cfg.Cart.Namespace,
		Store:     store.store,
		Watcher:   store.store,
		Expiry:    cfg.Cart.Expiry(),
		Defaults: cart.Defaults{
			TaxRate:        cfg.Cart.DefaultTaxRate,
			AllowBackorder: cfg.Cart.AllowBackorder,
		},
		Logger:  logg,
		Metrics: cartMetrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logg.Error(context.Background(), "error closing register sessions", err)
		}
	}()

	// PORT is injected by container platforms and wins over the config
	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": env.Get("HOSTNAME", "local"),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Sessions:  registry,
			Readiness: store.readiness,
			Gatherer:  reg,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		logg.Info(ctx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
