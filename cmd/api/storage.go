package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/intellisales-pos/api/controllers"
	"github.com/angelmondragon/intellisales-pos/internal/storage"
	"github.com/angelmondragon/intellisales-pos/pkg/config"
	"github.com/angelmondragon/intellisales-pos/pkg/db"
	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/migrate"
	"github.com/angelmondragon/intellisales-pos/pkg/redis"
)

// backend is the cart store selected by INTELLISALES_STORAGE_DRIVER together
// with the clients it owns.
type backend struct {
	store     storage.Backend
	readiness map[string]controllers.Pinger
	closers   []func() error
}

func (b *backend) Close() error {
	var errs error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, b.closers[i]())
	}
	return errs
}

func openBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*backend, error) {
	driver := cfg.Storage.StorageDriver()
	ctx = logg.WithField(ctx, "storage_driver", driver.String())

	switch driver {
	case enums.StorageDriverRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		store, err := storage.NewRedis(client, cfg.Cart.Namespace)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logg.Info(ctx, "cart storage ready")
		return &backend{
			store:     store,
			readiness: map[string]controllers.Pinger{"redis": client},
			// store.Close also closes the client
			closers: []func() error{store.Close},
		}, nil

	case enums.StorageDriverSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, err
		}
		store, err := storage.NewSQL(client.DB())
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logg.Info(ctx, "cart storage ready")
		return &backend{
			store:     store,
			readiness: map[string]controllers.Pinger{"database": client},
			closers:   []func() error{client.Close, store.Close},
		}, nil
	}

	store := storage.NewMemory()
	logg.Warn(ctx, "cart storage is in memory; carts do not survive a restart")
	return &backend{
		store:     store,
		readiness: map[string]controllers.Pinger{},
		closers:   []func() error{store.Close},
	}, nil
}
