// Package perf implements the Performance Optimizer: a background
// maintenance loop that keeps the event table's partitions and indexes
// ahead of incoming writes and retires old partitions on a ticker-driven
// background task.
package perf

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

// Config controls the maintenance loop's partitioning and indexing behavior.
type Config struct {
	EnablePartitioning       bool
	PartitionSizeDays        int
	PartitionAheadCount       int
	EnableAutoIndexing       bool
	RetentionDays            int
	MaintenanceInterval      time.Duration
}

// DefaultConfig returns the maintenance loop's production defaults.
func DefaultConfig() Config {
	return Config{
		EnablePartitioning:  true,
		PartitionSizeDays:   30,
		PartitionAheadCount: 3,
		EnableAutoIndexing:  true,
		RetentionDays:       365,
		MaintenanceInterval: 24 * time.Hour,
	}
}

// QueryExecutionStats holds query-latency sampling fields; this store's
// maintenance loop doesn't sample query latency, so these stay at their
// zero value.
type QueryExecutionStats struct {
	AverageQueryTimeMs  float64
	SlowQueriesCount    uint64
	OptimizedQueries    uint64
	CacheHitRatio       float64
}

// Statistics is a snapshot of the maintenance loop's state, read via
// Optimizer.Statistics.
type Statistics struct {
	TotalPartitions    int
	ActivePartitions   int
	TotalIndexes       int
	QueryStats         QueryExecutionStats
	LastMaintenance    *time.Time
	MaintenanceRuns    uint64
}

// Optimizer runs the partition/index maintenance loop against the Storage
// Adapter's underlying database.
type Optimizer struct {
	db     *gorm.DB
	config Config
	logger *zap.Logger

	mu              sync.RWMutex
	lastMaintenance *time.Time
	maintenanceRuns uint64

	stopCh chan struct{}
}

// NewOptimizer constructs an Optimizer bound to the database connection the
// Storage Adapter also uses.
func NewOptimizer(db *gorm.DB, config Config, logger *zap.Logger) *Optimizer {
	return &Optimizer{db: db, config: config, logger: logger, stopCh: make(chan struct{})}
}

// Initialize performs one-time setup: ensures indexes and the partitions
// needed to accept writes immediately.
func (o *Optimizer) Initialize(ctx context.Context) error {
	if o.config.EnableAutoIndexing {
		if err := storage.EnsureIndexes(ctx, o.db); err != nil {
			return err
		}
	}
	if o.config.EnablePartitioning {
		if err := o.ensurePartitionsAhead(ctx, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

// Start runs RunOnce on a ticker until ctx is canceled or Stop is called.
func (o *Optimizer) Start(ctx context.Context) {
	ticker := time.NewTicker(o.config.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			if err := o.RunOnce(ctx); err != nil {
				o.logger.Error("performance maintenance run failed", zap.Error(err))
			}
		}
	}
}

// Stop halts the maintenance loop.
func (o *Optimizer) Stop() {
	close(o.stopCh)
}

// RunOnce performs one maintenance pass: creates upcoming partitions, drops
// partitions past retention, refreshes planner statistics.
func (o *Optimizer) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()

	if o.config.EnablePartitioning {
		if err := o.ensurePartitionsAhead(ctx, now); err != nil {
			return err
		}
		if o.config.RetentionDays > 0 {
			cutoff := now.AddDate(0, 0, -o.config.RetentionDays)
			dropped, err := storage.DropPartitionsOlderThan(ctx, o.db, cutoff)
			if err != nil {
				return err
			}
			if dropped > 0 {
				o.logger.Info("dropped expired event partitions", zap.Int("count", dropped))
			}
		}
	}

	if err := storage.RefreshStatistics(ctx, o.db); err != nil {
		return err
	}

	t := time.Now().UTC()
	o.mu.Lock()
	o.lastMaintenance = &t
	o.mu.Unlock()
	atomic.AddUint64(&o.maintenanceRuns, 1)

	o.logger.Info("performance maintenance run complete", zap.Time("at", t))
	return nil
}

// ensurePartitionsAhead creates PartitionAheadCount+1 consecutive
// partitions, each PartitionSizeDays wide, the first starting at the
// current UTC day.
func (o *Optimizer) ensurePartitionsAhead(ctx context.Context, from time.Time) error {
	width := time.Duration(o.config.PartitionSizeDays) * 24 * time.Hour
	start := from.Truncate(24 * time.Hour)
	for i := 0; i < o.config.PartitionAheadCount+1; i++ {
		end := start.Add(width)
		if err := storage.EnsurePartition(ctx, o.db, start, end); err != nil {
			return err
		}
		start = end
	}
	return nil
}

// Statistics returns a snapshot of maintenance counters and live partition
// and index counts.
func (o *Optimizer) Statistics(ctx context.Context) (*Statistics, error) {
	partitions, err := storage.ListPartitions(ctx, o.db)
	if err != nil {
		return nil, err
	}
	indexCount, err := storage.IndexCount(ctx, o.db)
	if err != nil {
		return nil, err
	}

	o.mu.RLock()
	last := o.lastMaintenance
	o.mu.RUnlock()

	return &Statistics{
		TotalPartitions:  len(partitions),
		ActivePartitions: len(partitions),
		TotalIndexes:     indexCount,
		LastMaintenance:  last,
		MaintenanceRuns:  atomic.LoadUint64(&o.maintenanceRuns),
	}, nil
}
