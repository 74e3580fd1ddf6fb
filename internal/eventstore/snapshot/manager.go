package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

// Snapshot is the logical (decoded) view of an Aggregate Snapshot.
type Snapshot struct {
	SnapshotID       uuid.UUID
	AggregateID      uuid.UUID
	AggregateType    string
	AggregateVersion int64
	Payload          map[string]interface{}
	Compression      Compression
	OriginalSize     int64
	StoredSize       int64
	Checksum         string
	Metadata         map[string]interface{}
	CreatedAt        time.Time
}

// Manager builds, compresses, verifies, and restores aggregate snapshots
// behind a semaphore-bounded concurrency limit, and tracks lifecycle
// statistics in atomic counters. It runs no background loop; pruning
// happens only when Prune is called.
type Manager struct {
	adapter  storage.Adapter
	codecs   *CodecRegistry
	config   Config
	logger   *zap.Logger

	stats Stats

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Stats tracks Snapshot Manager lifecycle counters behind atomics, read via
// GetStats.
type Stats struct {
	Created       int64
	Restored      int64
	Pruned        int64
	CompressSkips int64
	BytesSaved    int64
}

// NewManager constructs a Manager bound to a Storage Adapter.
// maxConcurrentCreates bounds concurrent CreateSnapshot calls via a
// buffered-channel semaphore.
func NewManager(adapter storage.Adapter, config Config, logger *zap.Logger, maxConcurrentCreates int) *Manager {
	if maxConcurrentCreates <= 0 {
		maxConcurrentCreates = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		adapter: adapter,
		codecs:  NewCodecRegistry(),
		config:  config,
		logger:  logger,
		sem:     make(chan struct{}, maxConcurrentCreates),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RegisterCodec adds or replaces a codec, letting callers extend the
// mandatory set.
func (m *Manager) RegisterCodec(c Codec) {
	m.codecs.Register(c)
}

// ShouldSnapshot reports whether a new snapshot is due: current_version -
// latest_snapshot_version >= frequency, treating a missing snapshot as
// version 0.
func (m *Manager) ShouldSnapshot(ctx context.Context, aggregateID uuid.UUID, currentVersion int64) (bool, error) {
	latest, err := m.adapter.LatestSnapshot(ctx, aggregateID)
	if err != nil {
		if storeerrors.Code(err) == storeerrors.NotFound {
			return currentVersion-0 >= int64(m.config.Frequency), nil
		}
		return false, err
	}
	return currentVersion-latest.AggregateVersion >= int64(m.config.Frequency), nil
}

// Create builds a snapshot for the given aggregate/version/payload,
// applying the compression policy, and persists it via the Storage Adapter.
func (m *Manager) Create(ctx context.Context, aggregateID uuid.UUID, aggregateType string, version int64, payload map[string]interface{}, metadata map[string]interface{}) (*Snapshot, error) {
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	canon, err := json.Marshal(payload)
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to serialize snapshot payload")
	}
	originalSize := int64(len(canon))

	sum := sha256.Sum256(canon)
	checksum := hex.EncodeToString(sum[:])

	compression := CompressionNone
	stored := canon
	storedSize := originalSize

	if m.config.Compression != CompressionNone && originalSize >= m.config.ThresholdBytes {
		codec, err := m.codecs.Get(m.config.Compression)
		if err != nil {
			return nil, err
		}
		compressed, err := codec.Compress(canon)
		if err != nil {
			return nil, err
		}
		ratio := float64(len(compressed)) / float64(originalSize)
		if ratio <= m.config.MinCompressionRatio {
			compression = m.config.Compression
			stored = compressed
			storedSize = int64(len(compressed))
			atomic.AddInt64(&m.stats.BytesSaved, originalSize-storedSize)
		} else {
			atomic.AddInt64(&m.stats.CompressSkips, 1)
		}
	} else {
		atomic.AddInt64(&m.stats.CompressSkips, 1)
	}

	encoded := base64.StdEncoding.EncodeToString(stored)

	row := &storage.SnapshotRow{
		SnapshotID:       uuid.New(),
		AggregateID:      aggregateID,
		AggregateType:    aggregateType,
		AggregateVersion: version,
		Payload:          []byte(encoded),
		Compression:      string(compression),
		OriginalSize:     originalSize,
		StoredSize:        storedSize,
		Checksum:         checksum,
		Metadata:         storage.JSONMap(metadata),
		CreatedAt:        time.Now().UTC(),
	}
	if err := m.adapter.UpsertSnapshot(ctx, row); err != nil {
		return nil, err
	}

	atomic.AddInt64(&m.stats.Created, 1)
	m.logger.Debug("created snapshot",
		zap.String("aggregate_id", aggregateID.String()),
		zap.Int64("version", version),
		zap.String("compression", string(compression)),
		zap.Int64("original_size", originalSize),
		zap.Int64("stored_size", storedSize))

	return rowToSnapshot(row, payload), nil
}

// Latest restores the most recent snapshot for an aggregate.
func (m *Manager) Latest(ctx context.Context, aggregateID uuid.UUID) (*Snapshot, error) {
	row, err := m.adapter.LatestSnapshot(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	return m.restore(row)
}

// AtVersion restores the snapshot at an exact version.
func (m *Manager) AtVersion(ctx context.Context, aggregateID uuid.UUID, version int64) (*Snapshot, error) {
	row, err := m.adapter.SnapshotAtVersion(ctx, aggregateID, version)
	if err != nil {
		return nil, err
	}
	return m.restore(row)
}

func (m *Manager) restore(row *storage.SnapshotRow) (*Snapshot, error) {
	raw, err := base64.StdEncoding.DecodeString(string(row.Payload))
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.IntegrityError, "failed to decode snapshot payload")
	}

	decoded := raw
	if Compression(row.Compression) != CompressionNone {
		codec, err := m.codecs.Get(Compression(row.Compression))
		if err != nil {
			return nil, err
		}
		decoded, err = codec.Decompress(raw)
		if err != nil {
			return nil, err
		}
	}

	sum := sha256.Sum256(decoded)
	if hex.EncodeToString(sum[:]) != row.Checksum {
		return nil, storeerrors.New(storeerrors.IntegrityError, "snapshot digest mismatch").
			WithDetail("snapshot_id", row.SnapshotID)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to parse snapshot payload")
	}

	atomic.AddInt64(&m.stats.Restored, 1)
	return rowToSnapshot(row, payload), nil
}

// Prune enforces retention: keep at most MaxPerAggregate snapshots per
// aggregate and drop anything older than MaxAge.
func (m *Manager) Prune(ctx context.Context) error {
	if err := m.adapter.PruneSnapshots(ctx, m.config.MaxPerAggregate, m.config.MaxAge); err != nil {
		return err
	}
	atomic.AddInt64(&m.stats.Pruned, 1)
	return nil
}

// Recompress iterates a single snapshot row, decompressing with its
// original codec and recompressing with newCodec if doing so improves the
// ratio. The checksum (over uncompressed bytes) is unchanged. An offline
// maintenance operation, not part of the append/read hot path.
func (m *Manager) Recompress(ctx context.Context, row *storage.SnapshotRow, newCodec Compression) (*storage.SnapshotRow, error) {
	raw, err := base64.StdEncoding.DecodeString(string(row.Payload))
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.IntegrityError, "failed to decode snapshot payload")
	}
	decoded := raw
	if Compression(row.Compression) != CompressionNone {
		codec, err := m.codecs.Get(Compression(row.Compression))
		if err != nil {
			return nil, err
		}
		decoded, err = codec.Decompress(raw)
		if err != nil {
			return nil, err
		}
	}

	codec, err := m.codecs.Get(newCodec)
	if err != nil {
		return nil, err
	}
	recompressed, err := codec.Compress(decoded)
	if err != nil {
		return nil, err
	}
	if int64(len(recompressed)) >= row.StoredSize {
		return row, nil
	}

	row.Compression = string(newCodec)
	row.StoredSize = int64(len(recompressed))
	row.Payload = []byte(base64.StdEncoding.EncodeToString(recompressed))
	if err := m.adapter.UpsertSnapshot(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// GetStats returns a snapshot of lifecycle counters.
func (m *Manager) GetStats() Stats {
	return Stats{
		Created:       atomic.LoadInt64(&m.stats.Created),
		Restored:      atomic.LoadInt64(&m.stats.Restored),
		Pruned:        atomic.LoadInt64(&m.stats.Pruned),
		CompressSkips: atomic.LoadInt64(&m.stats.CompressSkips),
		BytesSaved:    atomic.LoadInt64(&m.stats.BytesSaved),
	}
}

// Shutdown cancels any outstanding background work owned by the manager.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

func rowToSnapshot(row *storage.SnapshotRow, payload map[string]interface{}) *Snapshot {
	return &Snapshot{
		SnapshotID:       row.SnapshotID,
		AggregateID:      row.AggregateID,
		AggregateType:    row.AggregateType,
		AggregateVersion: row.AggregateVersion,
		Payload:          payload,
		Compression:      Compression(row.Compression),
		OriginalSize:     row.OriginalSize,
		StoredSize:       row.StoredSize,
		Checksum:         row.Checksum,
		Metadata:         map[string]interface{}(row.Metadata),
		CreatedAt:        row.CreatedAt,
	}
}
