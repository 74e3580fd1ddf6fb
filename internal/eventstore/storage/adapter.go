package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Adapter is the Storage Adapter contract. It owns physical persistence,
// ordered insertion, and partitioned tables; callers are the Event Log
// (events) and the Snapshot Manager (snapshots).
type Adapter interface {
	InsertOne(ctx context.Context, row *EventRow) error
	InsertMany(ctx context.Context, rows []*EventRow) error

	SelectByAggregate(ctx context.Context, aggregateID uuid.UUID, fromVersion int64) ([]*EventRow, error)
	SelectByType(ctx context.Context, eventType string, from, to *time.Time, limit int) ([]*EventRow, error)
	SelectByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]*EventRow, error)
	SelectFromPosition(ctx context.Context, position int64, limit int) ([]*EventRow, error)

	CurrentPosition(ctx context.Context) (int64, error)
	AggregateVersion(ctx context.Context, aggregateID uuid.UUID) (int64, error)
	AggregateExists(ctx context.Context, aggregateID uuid.UUID) (bool, error)

	UpsertSnapshot(ctx context.Context, row *SnapshotRow) error
	LatestSnapshot(ctx context.Context, aggregateID uuid.UUID) (*SnapshotRow, error)
	SnapshotAtVersion(ctx context.Context, aggregateID uuid.UUID, version int64) (*SnapshotRow, error)
	PruneSnapshots(ctx context.Context, keepLastN int, maxAge time.Duration) error
}
