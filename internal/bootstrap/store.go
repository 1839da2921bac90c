package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NewRecordStore opens the primary file and every configured mirror. A mirror
// that cannot be reached at startup is skipped with a warning; the primary
// must open. The returned cleanup closes mirror connections.
func NewRecordStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.RecordStore, func(), error) {
	primary, err := repository.NewFileBookingRepository(cfg.Storage.BookingsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open bookings file: %w", err)
	}

	var closers []func()
	opts := []repository.StoreOption{
		repository.WithStoreLogger(logger.Named("store")),
		repository.WithMirrorTimeout(cfg.Storage.MirrorTimeout()),
	}

	if cfg.Mongo.URI != "" {
		client, err := repository.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			logger.Warn("mongo mirror disabled", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
			mirror, err := repository.NewMongoMirror(ctx, client, cfg.Mongo)
			if err != nil {
				logger.Warn("mongo mirror disabled", zap.Error(err))
			} else {
				opts = append(opts, repository.WithMirror(mirror))
				logger.Info("mongo mirror enabled", zap.String("database", cfg.Mongo.Database), zap.String("collection", cfg.Mongo.Collection))
			}
		}
	}

	if cfg.Database.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Warn("postgres mirror disabled", zap.Error(err))
		} else {
			closers = append(closers, pool.Close)
			mirror, err := repository.NewPGMirror(ctx, pool)
			if err != nil {
				logger.Warn("postgres mirror disabled", zap.Error(err))
			} else {
				opts = append(opts, repository.WithMirror(mirror))
				logger.Info("postgres mirror enabled", zap.String("database", cfg.Database.Name))
			}
		}
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return repository.NewRecordStore(primary, opts...), cleanup, nil
}
