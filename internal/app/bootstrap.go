package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/labstock/internal/inventory"
	jobmetrics "github.com/odyssey-erp/labstock/internal/jobs"
	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/ledger/postgres"
	"github.com/odyssey-erp/labstock/internal/ledger/sqlite"
	"github.com/odyssey-erp/labstock/internal/masterdata"
	"github.com/odyssey-erp/labstock/internal/observability"
	"github.com/odyssey-erp/labstock/internal/platform/cache"
	"github.com/odyssey-erp/labstock/internal/platform/db"
	"github.com/odyssey-erp/labstock/internal/shared"
	"github.com/odyssey-erp/labstock/internal/stock"
	"github.com/odyssey-erp/labstock/jobs"
)

// LedgerStore is what every store driver provides.
type LedgerStore interface {
	ledger.Store
	masterdata.Store
}

// Runtime holds the wired services of one process.
type Runtime struct {
	Config *Config
	Logger *slog.Logger

	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Store  LedgerStore
	Locker *shared.Locker

	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics

	MasterData *masterdata.Service
	Stock      *stock.Service
	Inventory  *inventory.Service
	SweepJob   *stock.SweepJob

	migrate func(context.Context) error
	closers []func() error
}

// Bootstrap opens the configured store and Redis and wires the services.
// Without a reachable Redis the process runs single-site: no catalog cache
// and no distributed locks.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}
	rt.JobMetrics = jobmetrics.NewMetrics(rt.Metrics.Registerer())
	if envFileExists() {
		logger.Info("loaded .env file")
	}

	switch cfg.StoreDriver {
	case DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.Store = store
		rt.migrate = func(context.Context) error { return nil }
		rt.closers = append(rt.closers, store.Close)
		logger.Info("ledger store ready", slog.String("driver", DriverSQLite), slog.String("path", store.Path()))
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "labstock"})
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool)
		rt.Pool = pool
		rt.Store = store
		rt.migrate = store.Migrate
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		logger.Info("ledger store ready", slog.String("driver", DriverPostgres))
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, running without catalog cache and locks", slog.Any("error", err))
	} else {
		rt.Redis = redisClient
		rt.closers = append(rt.closers, redisClient.Close)
	}

	rt.Locker = shared.NewLocker(rt.Redis, cfg.PostingLockTTL, cfg.PostingLockWait)
	var catalogCache *masterdata.CatalogCache
	if rt.Redis != nil {
		catalogCache = masterdata.NewCatalogCache(rt.Redis, cfg.CatalogCacheTTL, logger)
	}
	rt.MasterData = masterdata.NewService(rt.Store, catalogCache, logger)
	rt.Stock = stock.NewService(rt.Store, rt.MasterData, cfg.StockConfig(), logger)

	invCfg := inventory.ServiceConfig{
		Locker: rt.Locker,
		Audit:  shared.NewAuditLogger(rt.Pool, logger),
		Logger: logger,
	}
	if rt.Pool != nil {
		invCfg.Idempotency = shared.NewIdempotencyStore(rt.Pool)
	}
	rt.Inventory = inventory.NewService(rt.Store, rt.Stock, rt.MasterData, invCfg)

	sweepLocker := shared.NewLocker(rt.Redis, cfg.SweepLockTTL, 0)
	rt.SweepJob = stock.NewSweepJob(rt.Stock, sweepLocker, rt.JobMetrics, logger)
	return rt, nil
}

// Migrate applies the store schema.
func (rt *Runtime) Migrate(ctx context.Context) error {
	if rt.migrate == nil {
		return errors.New("app: runtime not bootstrapped")
	}
	return rt.migrate(ctx)
}

// RedisOpt returns the asynq connection options for the configured Redis.
func (rt *Runtime) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: rt.Config.RedisAddr}
}

// Router builds the HTTP handler. inspector may be nil.
func (rt *Runtime) Router(inspector *asynq.Inspector) http.Handler {
	return NewRouter(RouterParams{
		Logger:            rt.Logger,
		Config:            rt.Config,
		MasterDataHandler: masterdata.NewHandler(rt.Logger, rt.MasterData),
		StockHandler:      stock.NewHandler(rt.Logger, rt.Stock),
		InventoryHandler:  inventory.NewHandler(rt.Logger, rt.Inventory),
		JobHandler:        jobs.NewHandler(inspector, rt.Logger),
		Metrics:           rt.Metrics,
	})
}

// Close releases resources in reverse acquisition order.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("app: close: %w", errors.Join(errs...))
	}
	return nil
}
