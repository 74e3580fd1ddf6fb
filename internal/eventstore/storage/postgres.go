package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// Config configures the Postgres-backed Storage Adapter. Grounded on
// internal/db/config.go's DBConfig/DefaultConfig.
type Config struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Username:        "postgres",
		Password:        "postgres",
		Database:        "eventstore",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// zapGormWriter adapts zap to gorm's logger.Writer interface.
type zapGormWriter struct{ logger *zap.Logger }

func (w *zapGormWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Debugf(format, args...)
}

// Open connects to Postgres via GORM with a zap-backed slow-query logger,
// matching internal/db/config.go's Connect.
func Open(cfg *Config, logger *zap.Logger) (*gorm.DB, error) {
	gormLogger := gormlogger.New(
		&zapGormWriter{logger: logger},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn(cfg)), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to open database connection")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to access underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func dsn(c *Config) string {
	return "host=" + c.Host +
		" port=" + itoa(c.Port) +
		" user=" + c.Username +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [12]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// AutoMigrate creates the event, snapshot, and index schema.
func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("running storage adapter migrations")
	if err := db.AutoMigrate(&EventRow{}, &SnapshotRow{}); err != nil {
		return storeerrors.Wrap(err, storeerrors.Permanent, "auto-migrate failed")
	}
	return EnsureIndexes(context.Background(), db)
}

// PostgresAdapter implements Adapter against a GORM-managed Postgres connection.
type PostgresAdapter struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgresAdapter constructs a PostgresAdapter.
func NewPostgresAdapter(db *gorm.DB, logger *zap.Logger) *PostgresAdapter {
	return &PostgresAdapter{db: db, logger: logger}
}

// InsertOne inserts a single event row within a transaction. Global position
// is assigned by the database (BIGSERIAL); uniqueness violations on
// (aggregate_id, aggregate_version) classify as ConcurrencyConflict.
func (a *PostgresAdapter) InsertOne(ctx context.Context, row *EventRow) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// InsertMany inserts all rows atomically: either all succeed with
// consecutive global_position values (assigned by a single multi-row
// INSERT against the BIGSERIAL column) or none are visible. Ordering within
// the batch matches input order; cross-aggregate batches are permitted,
// version contiguity per aggregate is the caller's (Event Log's)
// responsibility.
func (a *PostgresAdapter) InsertMany(ctx context.Context, rows []*EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, len(rows)).Error
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// SelectByAggregate returns events for an aggregate in ascending version order.
func (a *PostgresAdapter) SelectByAggregate(ctx context.Context, aggregateID uuid.UUID, fromVersion int64) ([]*EventRow, error) {
	var rows []*EventRow
	q := a.db.WithContext(ctx).Where("aggregate_id = ? AND aggregate_version >= ?", aggregateID, fromVersion).
		Order("aggregate_version ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// SelectByType returns events of a type in ascending recorded_at order, optionally bounded by time range and limit.
func (a *PostgresAdapter) SelectByType(ctx context.Context, eventType string, from, to *time.Time, limit int) ([]*EventRow, error) {
	q := a.db.WithContext(ctx).Where("event_type = ?", eventType)
	if from != nil {
		q = q.Where("recorded_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("recorded_at <= ?", *to)
	}
	q = q.Order("recorded_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*EventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// SelectByCorrelation returns events sharing a correlation id in ascending global_position order.
func (a *PostgresAdapter) SelectByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]*EventRow, error) {
	var rows []*EventRow
	err := a.db.WithContext(ctx).Where("correlation_id = ?", correlationID).
		Order("global_position ASC").Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// SelectFromPosition returns the next slice of events from a replay cursor position.
func (a *PostgresAdapter) SelectFromPosition(ctx context.Context, position int64, limit int) ([]*EventRow, error) {
	q := a.db.WithContext(ctx).Where("global_position > ?", position).Order("global_position ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*EventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// CurrentPosition returns the greatest assigned global_position, or 0 if the log is empty.
func (a *PostgresAdapter) CurrentPosition(ctx context.Context) (int64, error) {
	var pos int64
	err := a.db.WithContext(ctx).Model(&EventRow{}).Select("COALESCE(MAX(global_position), 0)").Scan(&pos).Error
	if err != nil {
		return 0, classify(err)
	}
	return pos, nil
}

// AggregateVersion returns the latest version recorded for an aggregate, or 0 if none.
func (a *PostgresAdapter) AggregateVersion(ctx context.Context, aggregateID uuid.UUID) (int64, error) {
	var version int64
	err := a.db.WithContext(ctx).Model(&EventRow{}).
		Where("aggregate_id = ?", aggregateID).
		Select("COALESCE(MAX(aggregate_version), 0)").Scan(&version).Error
	if err != nil {
		return 0, classify(err)
	}
	return version, nil
}

// AggregateExists reports whether any event has been recorded for an aggregate.
func (a *PostgresAdapter) AggregateExists(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&EventRow{}).Where("aggregate_id = ?", aggregateID).Count(&count).Error
	if err != nil {
		return false, classify(err)
	}
	return count > 0, nil
}

// UpsertSnapshot inserts or replaces the snapshot keyed by (aggregate_id, aggregate_version).
func (a *PostgresAdapter) UpsertSnapshot(ctx context.Context, row *SnapshotRow) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing SnapshotRow
		findErr := tx.Where("aggregate_id = ? AND aggregate_version = ?", row.AggregateID, row.AggregateVersion).
			First(&existing).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			return tx.Create(row).Error
		case findErr != nil:
			return findErr
		default:
			row.SnapshotID = existing.SnapshotID
			return tx.Save(row).Error
		}
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// LatestSnapshot returns the snapshot with the greatest version for an aggregate.
func (a *PostgresAdapter) LatestSnapshot(ctx context.Context, aggregateID uuid.UUID) (*SnapshotRow, error) {
	var row SnapshotRow
	err := a.db.WithContext(ctx).Where("aggregate_id = ?", aggregateID).
		Order("aggregate_version DESC").First(&row).Error
	if err != nil {
		return nil, classify(err)
	}
	return &row, nil
}

// SnapshotAtVersion returns the snapshot at an exact version, if one exists.
func (a *PostgresAdapter) SnapshotAtVersion(ctx context.Context, aggregateID uuid.UUID, version int64) (*SnapshotRow, error) {
	var row SnapshotRow
	err := a.db.WithContext(ctx).Where("aggregate_id = ? AND aggregate_version = ?", aggregateID, version).
		First(&row).Error
	if err != nil {
		return nil, classify(err)
	}
	return &row, nil
}

// PruneSnapshots enforces retention: keep at most keepLastN snapshots per
// aggregate and drop anything older than maxAge.
func (a *PostgresAdapter) PruneSnapshots(ctx context.Context, keepLastN int, maxAge time.Duration) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if maxAge > 0 {
			cutoff := time.Now().Add(-maxAge)
			if err := tx.Where("created_at < ?", cutoff).Delete(&SnapshotRow{}).Error; err != nil {
				return err
			}
		}
		if keepLastN <= 0 {
			return nil
		}
		var aggregateIDs []uuid.UUID
		if err := tx.Model(&SnapshotRow{}).Distinct().Pluck("aggregate_id", &aggregateIDs).Error; err != nil {
			return err
		}
		for _, id := range aggregateIDs {
			var ids []uuid.UUID
			if err := tx.Model(&SnapshotRow{}).Where("aggregate_id = ?", id).
				Order("aggregate_version DESC").Offset(keepLastN).Pluck("snapshot_id", &ids).Error; err != nil {
				return err
			}
			if len(ids) > 0 {
				if err := tx.Where("snapshot_id IN ?", ids).Delete(&SnapshotRow{}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
