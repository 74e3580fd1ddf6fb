package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	appconfig "github.com/abdoElHodaky/eventstore-core/internal/config"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/dlq"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/perf"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

const appName = "eventstore-migrate"

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration directory")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Println(appName)
		os.Exit(0)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	dbCfg := storage.DefaultConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.Username = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.Database = cfg.Database.Name
	dbCfg.SSLMode = cfg.Database.SSLMode

	db, err := storage.Open(dbCfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	ctx := context.Background()

	if err := storage.AutoMigrate(db, logger); err != nil {
		logger.Fatal("event/snapshot schema migration failed", zap.Error(err))
	}

	if err := dlq.NewStore(db, logger).AutoMigrate(); err != nil {
		logger.Fatal("dead-letter schema migration failed", zap.Error(err))
	}

	optimizer := perf.NewOptimizer(db, perf.Config{
		EnablePartitioning:  cfg.Performance.EnablePartitioning,
		PartitionSizeDays:   cfg.Performance.PartitionSizeDays,
		PartitionAheadCount: cfg.Performance.PartitionAheadCount,
		EnableAutoIndexing:  cfg.Performance.EnableAutoIndexing,
		RetentionDays:       cfg.Performance.RetentionDays,
		MaintenanceInterval: cfg.Performance.MaintenanceInterval,
	}, logger)
	if err := optimizer.Initialize(ctx); err != nil {
		logger.Fatal("partition/index bootstrap failed", zap.Error(err))
	}

	logger.Info("schema migration complete")
}
