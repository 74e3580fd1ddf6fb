// Package storage implements the Storage Adapter: translation of Event Log
// operations onto a transactional relational backend, partitioning, and
// index maintenance via GORM.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONMap stores a map[string]interface{} as a JSON column. GORM maps it to
// `json`/`jsonb` on Postgres via the Postgres driver's type mapping.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(map[string]interface{}(m))
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("storage: unsupported JSONMap scan type %T", value)
	}
	if len(raw) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// EventRow is the GORM model for the event table, partitioned on RecordedAt.
type EventRow struct {
	EventID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AggregateID       uuid.UUID  `gorm:"type:uuid;index:idx_events_aggregate,priority:1"`
	AggregateType    string     `gorm:"type:text;index:idx_events_aggregate_type_recorded"`
	EventType        string     `gorm:"type:text;index:idx_events_type_recorded"`
	AggregateVersion int64      `gorm:"index:idx_events_aggregate,priority:2"`
	SchemaVersion    int        `gorm:"not null"`
	EventData        JSONMap    `gorm:"type:jsonb"`
	Metadata         JSONMap    `gorm:"type:jsonb"`
	CorrelationID    *uuid.UUID `gorm:"type:uuid;index:idx_events_correlation,where:correlation_id IS NOT NULL"`
	CausationID      *uuid.UUID `gorm:"type:uuid;index:idx_events_causation,where:causation_id IS NOT NULL"`
	OccurredAt       time.Time  `gorm:"not null"`
	RecordedAt       time.Time  `gorm:"not null;index:idx_events_aggregate_type_recorded;index:idx_events_type_recorded"`
	GlobalPosition   int64      `gorm:"autoIncrement;uniqueIndex"`
	Checksum         string     `gorm:"type:varchar(64);not null"`
}

// TableName pins the GORM table name so partition DDL in partition.go can
// reference it by a stable identifier.
func (EventRow) TableName() string { return "events" }

// SnapshotRow is the GORM model for the snapshot table.
type SnapshotRow struct {
	SnapshotID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	AggregateID      uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_snapshots_aggregate_version;index:idx_snapshots_composite,priority:1,sort:asc"`
	AggregateType    string    `gorm:"type:text"`
	AggregateVersion int64     `gorm:"uniqueIndex:idx_snapshots_aggregate_version;index:idx_snapshots_composite,priority:2,sort:desc"`
	Payload          []byte    `gorm:"type:bytea"`
	Compression      string    `gorm:"type:varchar(16);not null"`
	OriginalSize     int64     `gorm:"not null"`
	StoredSize       int64     `gorm:"not null"`
	Checksum         string    `gorm:"type:varchar(64);not null"`
	Metadata         JSONMap   `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"not null;index:idx_snapshots_composite,priority:3,sort:desc"`
}

// TableName pins the GORM table name.
func (SnapshotRow) TableName() string { return "event_snapshots" }
