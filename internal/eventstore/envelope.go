// Package eventstore implements the append-only event log: the public
// append/read/stream API that enforces envelope invariants, computes
// checksums, and routes to the storage adapter.
package eventstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
	"github.com/abdoElHodaky/eventstore-core/internal/common/validation"
)

// Envelope is the unit of persistence: an immutable event record carrying
// payload, routing metadata, and integrity fields.
type Envelope struct {
	EventID          uuid.UUID              `json:"event_id" validate:"required"`
	AggregateID      uuid.UUID              `json:"aggregate_id" validate:"required"`
	AggregateType    string                 `json:"aggregate_type" validate:"required"`
	EventType        string                 `json:"event_type" validate:"required"`
	AggregateVersion int64                  `json:"aggregate_version" validate:"required,min=1"`
	SchemaVersion    int                    `json:"schema_version" validate:"min=1"`
	EventData        map[string]interface{} `json:"event_data" validate:"required"`
	Metadata         map[string]interface{} `json:"metadata"`
	CorrelationID    *uuid.UUID             `json:"correlation_id,omitempty"`
	CausationID      *uuid.UUID             `json:"causation_id,omitempty"`
	OccurredAt       time.Time              `json:"occurred_at"`
	RecordedAt       time.Time              `json:"recorded_at"`
	GlobalPosition   int64                  `json:"global_position"`
	Checksum         string                 `json:"checksum"`
}

var envelopeValidator = validation.New()

// Metadata keys recognized by the resilient wrapper and migration registry.
const (
	MetadataCorrelationID = "correlation_id"
	MetadataCausationID   = "causation_id"
	MetadataUserID        = "user_id"
	MetadataSource        = "source"
)

// NewEnvelope constructs an envelope for append. EventID, RecordedAt, and
// Checksum are populated here or by the Event Log's Append contract;
// OccurredAt is set to the current time and may be overwritten by the caller.
func NewEnvelope(aggregateID uuid.UUID, aggregateType, eventType string, aggregateVersion int64, schemaVersion int, data, metadata map[string]interface{}) *Envelope {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &Envelope{
		EventID:          uuid.New(),
		AggregateID:      aggregateID,
		AggregateType:    aggregateType,
		EventType:        eventType,
		AggregateVersion: aggregateVersion,
		SchemaVersion:    schemaVersion,
		EventData:        data,
		Metadata:         metadata,
		OccurredAt:       time.Now().UTC(),
	}
}

// Validate enforces the Append contract's structural checks (step 1):
// required-field presence via struct tags, plus the aggregate_id zero-value
// check validator's "required" tag doesn't catch on a value uuid.UUID.
func (e *Envelope) Validate() error {
	if err := envelopeValidator.Struct(e); err != nil {
		return storeerrors.Wrap(err, storeerrors.Permanent, "envelope failed validation")
	}
	if e.AggregateID == uuid.Nil {
		return storeerrors.New(storeerrors.Permanent, "aggregate_id must not be zero")
	}
	return nil
}

// CanonicalJSON returns the deterministic byte representation of event_data
// used as digest input: keys sorted, no whitespace. map[string]interface{}
// round-tripped through encoding/json already sorts object keys, so this
// wrapper exists to make that guarantee explicit and stable if the
// marshaling strategy ever changes.
func CanonicalJSON(data map[string]interface{}) ([]byte, error) {
	return marshalSorted(data)
}

func marshalSorted(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []interface{}:
		buf := []byte{'['}
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			ib, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ib...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(v)
	}
}

// ComputeChecksum computes the SHA-256 hex digest over the canonical
// serialization of event_data.
func ComputeChecksum(data map[string]interface{}) (string, error) {
	canon, err := CanonicalJSON(data)
	if err != nil {
		return "", storeerrors.Wrap(err, storeerrors.Permanent, "canonical serialization failed")
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum recomputes the digest over event_data and compares it to
// the stored checksum, returning IntegrityError on mismatch.
func (e *Envelope) VerifyChecksum() error {
	sum, err := ComputeChecksum(e.EventData)
	if err != nil {
		return err
	}
	if sum != e.Checksum {
		return storeerrors.New(storeerrors.IntegrityError, "checksum mismatch").
			WithDetail("event_id", e.EventID).
			WithDetail("expected", e.Checksum).
			WithDetail("actual", sum)
	}
	return nil
}
