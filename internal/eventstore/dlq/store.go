package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

// Store persists dead-letter entries via GORM, mirroring the Storage
// Adapter's connection and classification conventions.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore constructs a Store over an existing GORM connection.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// AutoMigrate creates the dead_letter_entries table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Row{}); err != nil {
		return storeerrors.Wrap(err, storeerrors.Permanent, "dlq auto-migrate failed")
	}
	return nil
}

// Add stores a failed envelope with status "failed" and retry_count 0.
func (s *Store) Add(ctx context.Context, env *eventstore.Envelope, cause error) (*Entry, error) {
	envMap, err := envelopeToMap(env)
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to serialize envelope for dlq")
	}
	now := time.Now().UTC()
	row := &Row{
		EntryID:        uuid.New(),
		Envelope:       envMap,
		FirstFailureAt: now,
		LastFailureAt:  now,
		RetryCount:     0,
		Status:         string(StatusFailed),
		LastErrorMsg:   cause.Error(),
	}
	if details := storeerrors.Details(cause); details != nil {
		row.ErrorDetails = storage.JSONMap(details)
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to persist dlq entry")
	}
	s.logger.Warn("event written to dead-letter queue",
		zap.String("entry_id", row.EntryID.String()),
		zap.String("event_id", env.EventID.String()),
		zap.Error(cause))
	return rowToEntry(row, env), nil
}

// GetRetryCandidates returns entries with status failed or retrying, oldest first.
func (s *Store) GetRetryCandidates(ctx context.Context, limit int) ([]*Entry, error) {
	q := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(StatusFailed), string(StatusRetrying)}).
		Order("first_failure_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*Row
	if err := q.Find(&rows).Error; err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to query dlq retry candidates")
	}
	entries := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		env, err := mapToEnvelope(row.Envelope)
		if err != nil {
			s.logger.Error("failed to deserialize dlq envelope", zap.String("entry_id", row.EntryID.String()), zap.Error(err))
			continue
		}
		entries = append(entries, rowToEntry(row, env))
	}
	return entries, nil
}

// MarkRetrying transitions an entry to the retrying status.
func (s *Store) MarkRetrying(ctx context.Context, entryID uuid.UUID) error {
	return s.updateStatus(ctx, entryID, StatusRetrying, nil)
}

// MarkResolved transitions an entry to resolved; it is excluded from future retry scans.
func (s *Store) MarkResolved(ctx context.Context, entryID uuid.UUID) error {
	return s.updateStatus(ctx, entryID, StatusResolved, nil)
}

// MarkPermanentlyFailed transitions an entry out of the retry loop.
func (s *Store) MarkPermanentlyFailed(ctx context.Context, entryID uuid.UUID) error {
	return s.updateStatus(ctx, entryID, StatusPermanentlyFailed, nil)
}

// IncrementRetry bumps retry_count and records the latest failure.
func (s *Store) IncrementRetry(ctx context.Context, entryID uuid.UUID, cause error) error {
	updates := map[string]interface{}{
		"retry_count":     gorm.Expr("retry_count + 1"),
		"last_failure_at": time.Now().UTC(),
		"status":          string(StatusRetrying),
	}
	if cause != nil {
		updates["last_error_message"] = cause.Error()
	}
	err := s.db.WithContext(ctx).Model(&Row{}).Where("entry_id = ?", entryID).Updates(updates).Error
	if err != nil {
		return storeerrors.Wrap(err, storeerrors.Transient, "failed to increment dlq retry count")
	}
	return nil
}

func (s *Store) updateStatus(ctx context.Context, entryID uuid.UUID, status Status, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": string(status)}
	for k, v := range extra {
		updates[k] = v
	}
	err := s.db.WithContext(ctx).Model(&Row{}).Where("entry_id = ?", entryID).Updates(updates).Error
	if err != nil {
		return storeerrors.Wrap(err, storeerrors.Transient, "failed to update dlq entry status")
	}
	return nil
}

// Statistics summarizes DLQ contents: counts per status, oldest/newest
// timestamps, and mean retry count.
type Statistics struct {
	CountByStatus   map[Status]int64
	OldestFailureAt *time.Time
	NewestFailureAt *time.Time
	MeanRetryCount  float64
}

// Statistics computes a Statistics snapshot over the current table contents.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{CountByStatus: make(map[Status]int64)}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := s.db.WithContext(ctx).Model(&Row{}).
		Select("status, count(*) as count").Group("status").Scan(&counts).Error; err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to compute dlq statistics")
	}
	for _, c := range counts {
		stats.CountByStatus[Status(c.Status)] = c.Count
	}

	var bounds struct {
		Oldest *time.Time
		Newest *time.Time
		AvgRet float64
	}
	err := s.db.WithContext(ctx).Model(&Row{}).
		Select("MIN(first_failure_at) as oldest, MAX(first_failure_at) as newest, COALESCE(AVG(retry_count), 0) as avg_ret").
		Scan(&bounds).Error
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Transient, "failed to compute dlq time bounds")
	}
	stats.OldestFailureAt = bounds.Oldest
	stats.NewestFailureAt = bounds.Newest
	stats.MeanRetryCount = bounds.AvgRet

	return stats, nil
}

// PurgeOlderThan deletes entries whose first_failure_at precedes cutoff.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("first_failure_at < ?", cutoff).Delete(&Row{})
	if res.Error != nil {
		return 0, storeerrors.Wrap(res.Error, storeerrors.Transient, "failed to purge dlq entries")
	}
	return res.RowsAffected, nil
}

func envelopeToMap(env *eventstore.Envelope) (storage.JSONMap, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mapToEnvelope(m storage.JSONMap) (*eventstore.Envelope, error) {
	raw, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	var env eventstore.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func rowToEntry(row *Row, env *eventstore.Envelope) *Entry {
	return &Entry{
		EntryID:        row.EntryID,
		Envelope:       env,
		FirstFailureAt: row.FirstFailureAt,
		LastFailureAt:  row.LastFailureAt,
		RetryCount:     row.RetryCount,
		Status:         Status(row.Status),
		LastErrorMsg:   row.LastErrorMsg,
		ErrorDetails:   row.ErrorDetails,
	}
}
