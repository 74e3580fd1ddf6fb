package perf

import (
	"context"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// PartitionStat is one row of the events table's physical partition
// catalog, queried directly against pg_catalog/pg_stat tables rather than
// through GORM's model mapping, grounded on internal/db/connection_pool.go's
// sqlx usage for administrative queries.
type PartitionStat struct {
	PartitionName string `db:"partition_name"`
	EstimatedRows int64  `db:"estimated_rows"`
	SizeBytes     int64  `db:"size_bytes"`
}

// sqlxFrom wraps a GORM connection's underlying *sql.DB with sqlx for
// struct-scanned raw queries.
func sqlxFrom(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to access underlying sql.DB")
	}
	return sqlx.NewDb(sqlDB, "postgres"), nil
}

// PartitionStats reports estimated row counts and on-disk size for each
// events partition, read from pg_stat_user_tables and pg_total_relation_size.
func (o *Optimizer) PartitionStats(ctx context.Context) ([]PartitionStat, error) {
	sx, err := sqlxFrom(o.db)
	if err != nil {
		return nil, err
	}

	var stats []PartitionStat
	query := `
		SELECT
			child.relname AS partition_name,
			COALESCE(st.n_live_tup, 0) AS estimated_rows,
			pg_total_relation_size(child.oid) AS size_bytes
		FROM pg_inherits
		JOIN pg_class parent ON pg_inherits.inhparent = parent.oid
		JOIN pg_class child ON pg_inherits.inhrelid = child.oid
		LEFT JOIN pg_stat_user_tables st ON st.relname = child.relname
		WHERE parent.relname = 'events'
		ORDER BY partition_name`
	if err := sx.SelectContext(ctx, &stats, query); err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to query partition statistics")
	}
	return stats, nil
}
