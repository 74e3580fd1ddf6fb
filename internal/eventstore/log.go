package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/migration"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

// CurrentSchemaVersions pins the schema version that reads migrate each
// known event type to; Append stores envelopes at the schema_version they
// carry, and types absent here are served at their stored version.
var CurrentSchemaVersions = map[string]int{
	"workflow_started":   2,
	"workflow_completed": 2,
	"prompt_sent":        2,
	"response_received":  2,
}

// Log is the Event Log: the append/read/stream API enforcing envelope
// invariants and routing to the Storage Adapter and Migration Registry.
type Log struct {
	adapter  storage.Adapter
	registry *migration.Registry
	logger   *zap.Logger
}

// NewLog constructs a Log bound to a Storage Adapter and Migration Registry.
func NewLog(adapter storage.Adapter, registry *migration.Registry, logger *zap.Logger) *Log {
	return &Log{adapter: adapter, registry: registry, logger: logger}
}

// Append runs the Append contract on a single envelope: validate structural
// invariants, compute the checksum, stamp recorded_at, and
// delegate to the Storage Adapter. Per-aggregate version conflicts surface
// as ConcurrencyConflict from the adapter.
func (l *Log) Append(ctx context.Context, env *Envelope) (*Envelope, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	checksum, err := ComputeChecksum(env.EventData)
	if err != nil {
		return nil, err
	}
	env.Checksum = checksum
	env.RecordedAt = time.Now().UTC()

	row := envelopeToRow(env)
	if err := l.adapter.InsertOne(ctx, row); err != nil {
		return nil, err
	}
	env.GlobalPosition = row.GlobalPosition

	l.logger.Debug("appended event",
		zap.String("event_id", env.EventID.String()),
		zap.String("aggregate_id", env.AggregateID.String()),
		zap.Int64("aggregate_version", env.AggregateVersion))

	return env, nil
}

// AppendBatch appends multiple envelopes atomically. Per-aggregate version
// contiguity is checked here, in input order, before the batch reaches the
// Storage Adapter, whose transaction makes the insert all-or-nothing;
// cross-aggregate batches are permitted.
func (l *Log) AppendBatch(ctx context.Context, envs []*Envelope) ([]*Envelope, error) {
	if len(envs) == 0 {
		return nil, nil
	}
	rows := make([]*storage.EventRow, 0, len(envs))
	now := time.Now().UTC()
	lastVersion := make(map[uuid.UUID]int64, len(envs))
	for _, env := range envs {
		if err := env.Validate(); err != nil {
			return nil, err
		}
		if prev, seen := lastVersion[env.AggregateID]; seen && env.AggregateVersion != prev+1 {
			return nil, storeerrors.New(storeerrors.Permanent, "batch versions must be contiguous per aggregate").
				WithDetail("aggregate_id", env.AggregateID.String()).
				WithDetail("aggregate_version", env.AggregateVersion)
		}
		lastVersion[env.AggregateID] = env.AggregateVersion
		checksum, err := ComputeChecksum(env.EventData)
		if err != nil {
			return nil, err
		}
		env.Checksum = checksum
		env.RecordedAt = now
		rows = append(rows, envelopeToRow(env))
	}

	if err := l.adapter.InsertMany(ctx, rows); err != nil {
		return nil, err
	}
	for i, row := range rows {
		envs[i].GlobalPosition = row.GlobalPosition
	}
	return envs, nil
}

// ReadAggregate loads every event for an aggregate from fromVersion onward
// (inclusive), verifying each checksum and migrating each payload to its
// current schema version.
func (l *Log) ReadAggregate(ctx context.Context, aggregateID uuid.UUID, fromVersion int64) ([]*Envelope, error) {
	rows, err := l.adapter.SelectByAggregate(ctx, aggregateID, fromVersion)
	if err != nil {
		return nil, err
	}
	return l.hydrate(rows)
}

// ReadByType loads events of a given type within an optional time window.
func (l *Log) ReadByType(ctx context.Context, eventType string, from, to *time.Time, limit int) ([]*Envelope, error) {
	rows, err := l.adapter.SelectByType(ctx, eventType, from, to, limit)
	if err != nil {
		return nil, err
	}
	return l.hydrate(rows)
}

// ReadByCorrelation loads every event sharing a correlation_id, useful for
// reconstructing a single workflow/request's full causal trace.
func (l *Log) ReadByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]*Envelope, error) {
	rows, err := l.adapter.SelectByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return l.hydrate(rows)
}

// CurrentPosition returns the highest global_position assigned so far.
func (l *Log) CurrentPosition(ctx context.Context) (int64, error) {
	return l.adapter.CurrentPosition(ctx)
}

// AggregateVersion returns the current version of an aggregate, or 0 if it
// does not exist yet.
func (l *Log) AggregateVersion(ctx context.Context, aggregateID uuid.UUID) (int64, error) {
	return l.adapter.AggregateVersion(ctx, aggregateID)
}

// hydrate verifies checksums and migrates payloads for a batch of rows.
func (l *Log) hydrate(rows []*storage.EventRow) ([]*Envelope, error) {
	envs := make([]*Envelope, 0, len(rows))
	for _, row := range rows {
		env := rowToEnvelope(row)
		if err := env.VerifyChecksum(); err != nil {
			return nil, err
		}

		target := CurrentSchemaVersions[env.EventType]
		if target == 0 {
			target = env.SchemaVersion
		}
		if l.registry != nil && target > env.SchemaVersion {
			migrated, err := l.registry.Apply(env.EventType, env.SchemaVersion, target, env.EventData)
			if err != nil {
				if storeerrors.Code(err) == storeerrors.MigrationUnavailable {
					l.logger.Warn("no migration path to current schema, serving as-stored",
						zap.String("event_type", env.EventType),
						zap.Int("stored_version", env.SchemaVersion),
						zap.Int("target_version", target))
				} else {
					return nil, err
				}
			} else {
				env.EventData = migrated
				env.SchemaVersion = target
			}
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func envelopeToRow(env *Envelope) *storage.EventRow {
	return &storage.EventRow{
		EventID:          env.EventID,
		AggregateID:      env.AggregateID,
		AggregateType:    env.AggregateType,
		EventType:        env.EventType,
		AggregateVersion: env.AggregateVersion,
		SchemaVersion:    env.SchemaVersion,
		EventData:        storage.JSONMap(env.EventData),
		Metadata:         storage.JSONMap(env.Metadata),
		CorrelationID:    env.CorrelationID,
		CausationID:      env.CausationID,
		OccurredAt:       env.OccurredAt,
		RecordedAt:       env.RecordedAt,
		GlobalPosition:   env.GlobalPosition,
		Checksum:         env.Checksum,
	}
}

func rowToEnvelope(row *storage.EventRow) *Envelope {
	return &Envelope{
		EventID:          row.EventID,
		AggregateID:      row.AggregateID,
		AggregateType:    row.AggregateType,
		EventType:        row.EventType,
		AggregateVersion: row.AggregateVersion,
		SchemaVersion:    row.SchemaVersion,
		EventData:        map[string]interface{}(row.EventData),
		Metadata:         map[string]interface{}(row.Metadata),
		CorrelationID:    row.CorrelationID,
		CausationID:      row.CausationID,
		OccurredAt:       row.OccurredAt,
		RecordedAt:       row.RecordedAt,
		GlobalPosition:   row.GlobalPosition,
		Checksum:         row.Checksum,
	}
}
