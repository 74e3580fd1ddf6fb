package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// EnsureIndexes creates the documented index set if missing. Grounded on
// internal/db/config.go's createIndexes, generalized to the event store schema.
func EnsureIndexes(ctx context.Context, db *gorm.DB) error {
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_aggregate_version ON events(aggregate_id, aggregate_version)`,
		`CREATE INDEX IF NOT EXISTS idx_events_aggregate_type_recorded ON events(aggregate_type, recorded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_recorded ON events(event_type, recorded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_correlation ON events(correlation_id) WHERE correlation_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_events_causation ON events(causation_id) WHERE causation_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_events_data_gin ON events USING gin(event_data)`,
		`CREATE INDEX IF NOT EXISTS idx_events_metadata_gin ON events USING gin(metadata)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_aggregate_version ON event_snapshots(aggregate_id, aggregate_version)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_composite ON event_snapshots(aggregate_id, aggregate_version DESC, created_at DESC)`,
	}
	for _, stmt := range statements {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return storeerrors.Wrap(err, storeerrors.Transient, "failed to create index").WithDetail("statement", stmt)
		}
	}
	return nil
}

// IndexCount reports how many of the documented indexes currently exist,
// used by the Performance Optimizer's statistics snapshot.
func IndexCount(ctx context.Context, db *gorm.DB) (int, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT count(*) FROM pg_indexes WHERE tablename IN ('events', 'event_snapshots') AND indexname LIKE 'idx_%'`,
	).Scan(&count).Error
	if err != nil {
		return 0, storeerrors.Wrap(err, storeerrors.Transient, "failed to count indexes")
	}
	return int(count), nil
}

// EnsurePartition creates a range partition on the events table covering
// [start, end) if it does not already exist, keyed by a name derived from
// the start date. The event table is range-partitioned on recorded_at by a
// configurable width.
func EnsurePartition(ctx context.Context, db *gorm.DB, start, end time.Time) error {
	name := fmt.Sprintf("events_p%s", start.Format("20060102"))
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF events FOR VALUES FROM (%s) TO (%s)`,
		name, quoteLiteral(start), quoteLiteral(end),
	)
	if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return storeerrors.Wrap(err, storeerrors.Transient, "failed to create partition").WithDetail("partition", name)
	}
	return nil
}

// DropPartitionsOlderThan drops event partitions whose upper bound is
// before cutoff. Partition names are derived by EnsurePartition's naming
// scheme, so this enumerates pg_inherits for child tables of "events".
func DropPartitionsOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int, error) {
	var names []string
	err := db.WithContext(ctx).Raw(`
		SELECT child.relname
		FROM pg_inherits
		JOIN pg_class parent ON pg_inherits.inhparent = parent.oid
		JOIN pg_class child ON pg_inherits.inhrelid = child.oid
		WHERE parent.relname = 'events'
	`).Scan(&names).Error
	if err != nil {
		return 0, storeerrors.Wrap(err, storeerrors.Transient, "failed to enumerate partitions")
	}

	dropped := 0
	for _, name := range names {
		partStart, ok := parsePartitionDate(name)
		if !ok {
			continue
		}
		if partStart.Before(cutoff) {
			stmt := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)
			if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
				return dropped, storeerrors.Wrap(err, storeerrors.Transient, "failed to drop partition").WithDetail("partition", name)
			}
			dropped++
		}
	}
	return dropped, nil
}

// ListPartitions returns the names of all child partitions of the events table.
func ListPartitions(ctx context.Context, db *gorm.DB) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).Raw(`
		SELECT child.relname
		FROM pg_inherits
		JOIN pg_class parent ON pg_inherits.inhparent = parent.oid
		JOIN pg_class child ON pg_inherits.inhrelid = child.oid
		WHERE parent.relname = 'events'
	`).Scan(&names).Error
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to list partitions")
	}
	return names, nil
}

// RefreshStatistics runs ANALYZE against the event and snapshot tables.
func RefreshStatistics(ctx context.Context, db *gorm.DB) error {
	for _, table := range []string{"events", "event_snapshots"} {
		if err := db.WithContext(ctx).Exec(fmt.Sprintf("ANALYZE %s", table)).Error; err != nil {
			return storeerrors.Wrap(err, storeerrors.Transient, "failed to analyze table").WithDetail("table", table)
		}
	}
	return nil
}

func quoteLiteral(t time.Time) string {
	return "'" + t.UTC().Format("2006-01-02") + "'"
}

func parsePartitionDate(name string) (time.Time, bool) {
	const prefix = "events_p"
	if len(name) != len(prefix)+8 || name[:len(prefix)] != prefix {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", name[len(prefix):])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
