// Package app assembles the allocation engine from configuration. The API
// server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/repository"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/cache"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/database"
	"github.com/noah-isme/college-timetable-api/pkg/storage"
)

// App holds the wired services and the resources they own.
type App struct {
	Store       service.AllocationStore
	Metrics     *service.MetricsService
	References  *service.ReferenceService
	Persistence *service.AllocationPersistenceService
	Allocations *service.AllocationService
	Exports     *service.TimetableExportService
	Checks      map[string]func(ctx context.Context) error

	closers []func() error
}

// New builds the store selected by cfg.Allocations.StoreDriver together with its
// reference source, optional Redis cache and lock, and the engine services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *service.MetricsService) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Metrics: metrics, Checks: map[string]func(ctx context.Context) error{}}
	if err := a.build(ctx, cfg, logger); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, source, err := a.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.Store = service.NewInstrumentedStore(store, cfg.Allocations.StoreDriver, a.Metrics)
	a.Checks["store"] = func(ctx context.Context) error {
		_, err := a.Store.Exists(ctx)
		return err
	}

	var client *redis.Client
	if cfg.Reference.CacheEnabled || cfg.Allocations.DistributedLock {
		client, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	var cacheSvc *service.CacheService
	if cfg.Reference.CacheEnabled {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(client, "timetable"), a.Metrics, cfg.Reference.CacheTTL, logger, true)
	}
	var locker service.StoreLocker = service.NewLocalStoreLocker()
	if cfg.Allocations.DistributedLock {
		locker = repository.NewRedisStoreLocker(client, cfg.Allocations.LockTTL, cfg.Allocations.LockRetryInterval)
	}

	detector := service.NewConflictDetector(logger, a.Metrics)
	a.References = service.NewReferenceService(source, service.NewReferenceLoader(nil, logger), cacheSvc, logger)
	a.Persistence = service.NewAllocationPersistenceService(service.NewAllocationSorter(logger), locker, a.Metrics, logger)
	a.Allocations = service.NewAllocationService(a.Store, a.Persistence, a.References, detector, nil, logger)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("prepare export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SigningSecret, cfg.Exports.URLTTL)
	a.Exports = service.NewTimetableExportService(a.Allocations, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.ResultTTL,
	}, logger, nil)

	logger.Info("allocation engine ready",
		zap.String("driver", cfg.Allocations.StoreDriver),
		zap.String("store", a.Store.Name()),
		zap.Bool("reference_cache", cacheSvc.Enabled()),
		zap.Bool("distributed_lock", cfg.Allocations.DistributedLock),
	)
	return nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (service.AllocationStore, service.ReferenceSource, error) {
	fileSource := repository.NewReferenceFileRepository(cfg.Reference.DataDir)
	switch cfg.Allocations.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := a.sqlStore(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		return store, repository.NewReferenceRepository(db), nil
	case config.StoreDriverSQLite:
		db, err := database.NewSQLite(cfg.Allocations.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		store, err := a.sqlStore(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		return store, fileSource, nil
	default:
		store, err := repository.NewFileAllocationStore(cfg.Allocations.File, cfg.Allocations.BackupDir)
		if err != nil {
			return nil, nil, err
		}
		return store, fileSource, nil
	}
}

func (a *App) sqlStore(ctx context.Context, db *sqlx.DB) (*repository.SQLAllocationStore, error) {
	a.closers = append(a.closers, db.Close)
	store := repository.NewSQLAllocationStore(db, "default")
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// Close releases database and Redis connections in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
