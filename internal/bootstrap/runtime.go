// Package bootstrap wires storage and Redis from configuration for the
// server and CLI entrypoints.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"podshare/internal/cache"
	"podshare/internal/config"
	"podshare/internal/database"
	"podshare/internal/middleware"
	"podshare/internal/repository"
	"podshare/internal/repository/memory"
	"podshare/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// EnsureSchema migrates the database before returning.
	EnsureSchema bool
	// SeedFixtures loads the fixture file at this path when set.
	SeedFixtures string
}

// Runtime holds the connections a process needs. DB is nil for the memory
// backend and Redis is nil when it is unreachable.
type Runtime struct {
	DB    *gorm.DB
	Store repository.Store
	Redis *redis.Client
}

// InitRuntime opens the configured store and Redis.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	switch cfg.StorageBackend {
	case config.StorageMemory:
		middleware.Logger.WarnContext(ctx, "using in-memory storage; data is lost on restart")
		rt.Store = memory.NewStore()
	default:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		if opts.EnsureSchema {
			if err := database.EnsureSchema(ctx, db, cfg.DBSchemaMode); err != nil {
				return nil, fmt.Errorf("schema setup failed: %w", err)
			}
		}
		rt.DB = db
		rt.Store = repository.NewStore(db)
	}

	rt.Redis = cache.Connect(ctx, cfg.RedisURL)

	if opts.SeedFixtures != "" {
		fx, err := seed.LoadFixtures(opts.SeedFixtures)
		if err != nil {
			return nil, err
		}
		res, err := seed.Apply(ctx, rt.Store, fx)
		if err != nil {
			return nil, fmt.Errorf("failed to seed fixtures: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "fixtures loaded",
			slog.Int("users", res.Users),
			slog.Int("pods", res.Pods),
			slog.Int("members", res.Members),
		)
	}

	return rt, nil
}

// Close releases the runtime's connections.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// Ping reports whether the database answers.
func (rt *Runtime) Ping(ctx context.Context) error {
	if rt.DB == nil {
		return nil
	}
	sqlDB, err := rt.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
