package eventstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/migration"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

// memoryAdapter is an in-memory storage.Adapter for exercising the Event Log
// without a real Postgres instance, grounded on the Adapter interface's
// method set (internal/eventstore/storage/adapter.go).
type memoryAdapter struct {
	mu   sync.Mutex
	rows []*storage.EventRow
	pos  int64
}

func newMemoryAdapter() *memoryAdapter { return &memoryAdapter{} }

func (m *memoryAdapter) InsertOne(ctx context.Context, row *storage.EventRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.AggregateID == row.AggregateID && existing.AggregateVersion == row.AggregateVersion {
			return storeerrors.New(storeerrors.ConcurrencyConflict, "aggregate version already exists")
		}
	}
	m.pos++
	row.GlobalPosition = m.pos
	m.rows = append(m.rows, row)
	return nil
}

func (m *memoryAdapter) InsertMany(ctx context.Context, rows []*storage.EventRow) error {
	for _, row := range rows {
		if err := m.InsertOne(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryAdapter) SelectByAggregate(ctx context.Context, aggregateID uuid.UUID, fromVersion int64) ([]*storage.EventRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.EventRow
	for _, row := range m.rows {
		if row.AggregateID == aggregateID && row.AggregateVersion >= fromVersion {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryAdapter) SelectByType(ctx context.Context, eventType string, from, to *time.Time, limit int) ([]*storage.EventRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.EventRow
	for _, row := range m.rows {
		if row.EventType == eventType {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryAdapter) SelectByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]*storage.EventRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.EventRow
	for _, row := range m.rows {
		if row.CorrelationID != nil && *row.CorrelationID == correlationID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryAdapter) SelectFromPosition(ctx context.Context, position int64, limit int) ([]*storage.EventRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.EventRow
	for _, row := range m.rows {
		if row.GlobalPosition > position {
			out = append(out, row)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryAdapter) CurrentPosition(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos, nil
}

func (m *memoryAdapter) AggregateVersion(ctx context.Context, aggregateID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, row := range m.rows {
		if row.AggregateID == aggregateID && row.AggregateVersion > max {
			max = row.AggregateVersion
		}
	}
	return max, nil
}

func (m *memoryAdapter) AggregateExists(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	v, _ := m.AggregateVersion(ctx, aggregateID)
	return v > 0, nil
}

func (m *memoryAdapter) UpsertSnapshot(ctx context.Context, row *storage.SnapshotRow) error { return nil }
func (m *memoryAdapter) LatestSnapshot(ctx context.Context, aggregateID uuid.UUID) (*storage.SnapshotRow, error) {
	return nil, storeerrors.New(storeerrors.NotFound, "no snapshot")
}
func (m *memoryAdapter) SnapshotAtVersion(ctx context.Context, aggregateID uuid.UUID, version int64) (*storage.SnapshotRow, error) {
	return nil, storeerrors.New(storeerrors.NotFound, "no snapshot")
}
func (m *memoryAdapter) PruneSnapshots(ctx context.Context, keepLastN int, maxAge time.Duration) error {
	return nil
}

func newTestLog(t *testing.T) (*Log, *memoryAdapter) {
	adapter := newMemoryAdapter()
	registry := migration.DefaultRegistry()
	return NewLog(adapter, registry, zaptest.NewLogger(t)), adapter
}

func TestAppendAssignsGlobalPositionAndChecksum(t *testing.T) {
	log, _ := newTestLog(t)
	env := NewEnvelope(uuid.New(), "workflow", "workflow_started", 1, 1,
		map[string]interface{}{"workflow_id": "wf-1", "workflow_type": "onboarding"}, nil)

	out, err := log.Append(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.GlobalPosition)
	assert.NotEmpty(t, out.Checksum)
}

func TestAppendRejectsDuplicateAggregateVersion(t *testing.T) {
	log, _ := newTestLog(t)
	aggID := uuid.New()
	data := map[string]interface{}{"workflow_id": "wf-1", "workflow_type": "onboarding"}

	_, err := log.Append(context.Background(), NewEnvelope(aggID, "workflow", "workflow_started", 1, 1, data, nil))
	require.NoError(t, err)

	_, err = log.Append(context.Background(), NewEnvelope(aggID, "workflow", "workflow_started", 1, 1, data, nil))
	require.Error(t, err)
	assert.Equal(t, storeerrors.ConcurrencyConflict, storeerrors.Code(err))
}

func TestReadAggregateMigratesStoredV1PayloadToCurrentVersion(t *testing.T) {
	log, adapter := newTestLog(t)
	aggID := uuid.New()

	env := NewEnvelope(aggID, "workflow", "workflow_started", 1, 1,
		map[string]interface{}{"workflow_id": "wf-1", "workflow_type": "onboarding"}, nil)
	_, err := log.Append(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, adapter.rows, 1)
	assert.Equal(t, 1, adapter.rows[0].SchemaVersion)

	out, err := log.ReadAggregate(context.Background(), aggID, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, 2, out[0].SchemaVersion)
	assert.Contains(t, out[0].EventData, "user_context")
}

func TestReadAggregateLeavesUnrecognizedEventTypeAtStoredVersion(t *testing.T) {
	log, _ := newTestLog(t)
	aggID := uuid.New()

	env := NewEnvelope(aggID, "unrouted_event", "unrouted_event", 1, 1,
		map[string]interface{}{"anything": "goes"}, nil)
	_, err := log.Append(context.Background(), env)
	require.NoError(t, err)

	out, err := log.ReadAggregate(context.Background(), aggID, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].SchemaVersion)
	assert.Equal(t, "goes", out[0].EventData["anything"])
}

func TestReadAggregateServesAsStoredWhenNoMigrationPathExists(t *testing.T) {
	adapter := newMemoryAdapter()
	registry := migration.NewRegistry()
	registry.Register(migration.NewWorkflowStartedV1ToV2())
	log := NewLog(adapter, registry, zaptest.NewLogger(t))

	aggID := uuid.New()
	env := NewEnvelope(aggID, "workflow_completed", "workflow_completed", 1, 1,
		map[string]interface{}{"workflow_id": "wf-1", "output_data": map[string]interface{}{"ok": true}}, nil)
	_, err := log.Append(context.Background(), env)
	require.NoError(t, err)

	out, err := log.ReadAggregate(context.Background(), aggID, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	// CurrentSchemaVersions targets v2, but this registry has no
	// workflow_completed migrator registered: served as-stored, not errored.
	assert.Equal(t, 1, out[0].SchemaVersion)
	assert.Equal(t, "wf-1", out[0].EventData["workflow_id"])
}

func TestReadAggregateDetectsChecksumTampering(t *testing.T) {
	log, adapter := newTestLog(t)
	aggID := uuid.New()

	env := NewEnvelope(aggID, "workflow", "workflow_started", 1, 1,
		map[string]interface{}{"workflow_id": "wf-1", "workflow_type": "onboarding"}, nil)
	_, err := log.Append(context.Background(), env)
	require.NoError(t, err)

	adapter.rows[0].EventData["workflow_id"] = "tampered"

	_, err = log.ReadAggregate(context.Background(), aggID, 1)
	require.Error(t, err)
	assert.Equal(t, storeerrors.IntegrityError, storeerrors.Code(err))
}
