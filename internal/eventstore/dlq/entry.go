// Package dlq implements the Dead-Letter Queue: durable capture of events
// that could not be persisted downstream, with retry accounting.
package dlq

import (
	"time"

	"github.com/google/uuid"

	"github.com/abdoElHodaky/eventstore-core/internal/eventstore"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/storage"
)

// Status is the lifecycle state of a dead-letter entry.
type Status string

const (
	StatusFailed            Status = "failed"
	StatusRetrying          Status = "retrying"
	StatusPermanentlyFailed Status = "permanently_failed"
	StatusResolved          Status = "resolved"
)

// Entry is a Dead-Letter Entry: the unmodified envelope that failed
// terminal delivery, plus retry bookkeeping.
type Entry struct {
	EntryID         uuid.UUID            `json:"entry_id"`
	Envelope        *eventstore.Envelope `json:"event_envelope"`
	FirstFailureAt  time.Time            `json:"first_failure_at"`
	LastFailureAt   time.Time            `json:"last_failure_at"`
	RetryCount      int                  `json:"retry_count"`
	Status          Status               `json:"status"`
	LastErrorMsg    string               `json:"last_error_message"`
	ErrorDetails    map[string]interface{} `json:"error_details,omitempty"`
}

// Row is the GORM model backing Entry. The envelope is stored as a JSON
// blob (storage.JSONMap round-tripped through encoding/json) since the
// dead-letter table's schema is independent of the partitioned event
// table.
type Row struct {
	EntryID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Envelope       storage.JSONMap `gorm:"type:jsonb"`
	FirstFailureAt time.Time      `gorm:"not null;index"`
	LastFailureAt  time.Time      `gorm:"not null"`
	RetryCount     int            `gorm:"not null;default:0"`
	Status         string         `gorm:"type:varchar(32);not null;index"`
	LastErrorMsg   string         `gorm:"type:text"`
	ErrorDetails   storage.JSONMap `gorm:"type:jsonb"`
}

// TableName pins the GORM table name.
func (Row) TableName() string { return "dead_letter_entries" }
