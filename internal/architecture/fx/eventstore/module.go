// Package eventstore wires the event store's components into an fx
// application: the Storage Adapter, Snapshot Manager, Migration Registry,
// Event Log, Resilient Wrapper, Performance Optimizer, and Dead-Letter
// Queue retry driver. Grounded structurally on
// internal/architecture/fx/workerpool/module.go's Provide/Invoke/lifecycle
// shape.
package eventstore

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appconfig "github.com/abdoElHodaky/eventstore-core/internal/config"
	"github.com/abdoElHodaky/eventstore-core/internal/architecture/fx/workerpool"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/dlq"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/migration"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/perf"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/resilience"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/snapshot"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

// Module provides every event store component and wires their lifecycle
// into the fx application.
var Module = fx.Options(
	workerpool.Module,
	fx.Provide(
		provideConfig,
		provideDB,
		provideAdapter,
		provideMigrationRegistry,
		provideLog,
		provideSnapshotManager,
		provideDLQStore,
		provideResilientWrapper,
		providePerfOptimizer,
		provideDLQRetryDriver,
	),
	fx.Invoke(registerLifecycle),
)

func provideConfig() (*appconfig.Config, error) {
	return appconfig.Load("")
}

func provideDB(cfg *appconfig.Config, logger *zap.Logger) (*gorm.DB, error) {
	dbCfg := storage.DefaultConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.Username = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.Database = cfg.Database.Name
	dbCfg.SSLMode = cfg.Database.SSLMode
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	dbCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	return storage.Open(dbCfg, logger)
}

func provideAdapter(db *gorm.DB, logger *zap.Logger) storage.Adapter {
	return storage.NewPostgresAdapter(db, logger)
}

func provideMigrationRegistry() *migration.Registry {
	return migration.DefaultRegistry()
}

func provideLog(adapter storage.Adapter, registry *migration.Registry, logger *zap.Logger) *eventstore.Log {
	return eventstore.NewLog(adapter, registry, logger)
}

func provideSnapshotManager(cfg *appconfig.Config, adapter storage.Adapter, logger *zap.Logger) *snapshot.Manager {
	sc := cfg.Snapshot
	config := snapshot.Config{
		Frequency:           sc.Frequency,
		Compression:         snapshot.Compression(sc.Compression),
		MinCompressionRatio: sc.MinCompressionRatio,
		ThresholdBytes:      sc.ThresholdBytes,
		MaxAge:              sc.MaxAge,
		MaxPerAggregate:     sc.MaxPerAggregate,
	}
	return snapshot.NewManager(adapter, config, logger, sc.MaxConcurrentCreates)
}

func provideDLQStore(db *gorm.DB, logger *zap.Logger) *dlq.Store {
	return dlq.NewStore(db, logger)
}

func provideResilientWrapper(cfg *appconfig.Config, log *eventstore.Log, dlqStore *dlq.Store, logger *zap.Logger) *resilience.Wrapper {
	rc := cfg.Resilience
	retry := resilience.RetryConfig{
		MaxAttempts:   rc.MaxAttempts,
		InitialDelay:  rc.InitialDelay,
		MaxDelay:      rc.MaxDelay,
		BackoffFactor: rc.BackoffFactor,
	}
	breaker := resilience.BreakerConfig{
		FailureThreshold: rc.Breaker.FailureThreshold,
		RecoveryTimeout:  rc.Breaker.RecoveryTimeout,
		SuccessThreshold: rc.Breaker.SuccessThreshold,
	}
	return resilience.NewWrapper(log, dlqStore, retry, breaker, logger)
}

func providePerfOptimizer(cfg *appconfig.Config, db *gorm.DB, logger *zap.Logger) *perf.Optimizer {
	pc := cfg.Performance
	config := perf.Config{
		EnablePartitioning:  pc.EnablePartitioning,
		PartitionSizeDays:   pc.PartitionSizeDays,
		PartitionAheadCount: pc.PartitionAheadCount,
		EnableAutoIndexing:  pc.EnableAutoIndexing,
		RetentionDays:       pc.RetentionDays,
		MaintenanceInterval: pc.MaintenanceInterval,
	}
	return perf.NewOptimizer(db, config, logger)
}

func provideDLQRetryDriver(cfg *appconfig.Config, store *dlq.Store, pool *workerpool.WorkerPoolFactory, wrapper *resilience.Wrapper, logger *zap.Logger) *dlq.RetryDriver {
	dc := cfg.DLQ
	return dlq.NewRetryDriver(store, pool, wrapper.Replay, logger, dc.PollInterval, dc.BatchSize, dc.MaxRetries)
}

func registerLifecycle(
	lc fx.Lifecycle,
	logger *zap.Logger,
	db *gorm.DB,
	dlqStore *dlq.Store,
	optimizer *perf.Optimizer,
	retryDriver *dlq.RetryDriver,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting event store components")
			if err := storage.AutoMigrate(db, logger); err != nil {
				return err
			}
			if err := dlqStore.AutoMigrate(); err != nil {
				return err
			}
			if err := optimizer.Initialize(ctx); err != nil {
				return err
			}
			go optimizer.Start(context.Background())
			go retryDriver.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping event store components")
			retryDriver.Stop()
			optimizer.Stop()
			sqlDB, err := db.DB()
			if err == nil {
				return sqlDB.Close()
			}
			return nil
		},
	})
}
