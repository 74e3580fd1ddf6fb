// Package migration implements the Migration Registry: versioned event
// schemas with forward migration of stored payloads, composable into
// chains.
package migration

// Migrator is a unit-step transform for one event_type from_version ->
// to_version. Unit-step edges (v -> v+1) compose deterministically into
// longer chains.
type Migrator interface {
	EventType() string
	FromVersion() int
	ToVersion() int
	Description() string
	// CanMigrate is the applicability predicate; false yields MigrationRefused.
	CanMigrate(payload map[string]interface{}) bool
	// Migrate transforms the payload; it must not mutate its argument in place
	// if the caller might reuse it, so implementations return a new map.
	Migrate(payload map[string]interface{}) (map[string]interface{}, error)
}

// SchemaVersion documents a single (event_type, version) pair ever
// produced; descriptive only.
type SchemaVersion struct {
	EventType   string
	Version     int
	Description string
}

// baseMigrator is embedded by concrete migrators to avoid repeating the
// trivial accessor boilerplate.
type baseMigrator struct {
	eventType   string
	fromVersion int
	toVersion   int
	description string
}

func (b baseMigrator) EventType() string   { return b.eventType }
func (b baseMigrator) FromVersion() int    { return b.fromVersion }
func (b baseMigrator) ToVersion() int      { return b.toVersion }
func (b baseMigrator) Description() string { return b.description }

// copyPayload returns a shallow copy so transforms never mutate the input map.
func copyPayload(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
