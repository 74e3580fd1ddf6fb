package migration

import (
	"fmt"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// edgeKey identifies a single unit-step migrator.
type edgeKey struct {
	eventType   string
	fromVersion int
}

// Registry resolves and applies migration chains: a map keyed by event
// type and from-version holding the unit-step migrator for that edge.
type Registry struct {
	edges    map[edgeKey]Migrator
	versions []SchemaVersion
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{edges: make(map[edgeKey]Migrator)}
}

// Register adds a unit-step migrator. Registering two migrators for the
// same (event_type, from_version) is a programming error and panics, since
// it can only happen at startup wiring time.
func (r *Registry) Register(m Migrator) {
	key := edgeKey{eventType: m.EventType(), fromVersion: m.FromVersion()}
	if _, exists := r.edges[key]; exists {
		panic(fmt.Sprintf("migration: duplicate migrator for %s v%d", m.EventType(), m.FromVersion()))
	}
	r.edges[key] = m
}

// RegisterVersion records a schema version for documentation/introspection.
func (r *Registry) RegisterVersion(v SchemaVersion) {
	r.versions = append(r.versions, v)
}

// Versions returns all recorded schema versions.
func (r *Registry) Versions() []SchemaVersion {
	return r.versions
}

// ResolveChain walks unit-step edges from fromVersion to toVersion,
// returning MigrationUnavailable if any edge is missing.
func (r *Registry) ResolveChain(eventType string, fromVersion, toVersion int) ([]Migrator, error) {
	if fromVersion == toVersion {
		return nil, nil
	}
	if fromVersion > toVersion {
		return nil, storeerrors.New(storeerrors.MigrationUnavailable, "cannot migrate backwards").
			WithDetail("event_type", eventType).
			WithDetail("from_version", fromVersion).
			WithDetail("to_version", toVersion)
	}

	chain := make([]Migrator, 0, toVersion-fromVersion)
	current := fromVersion
	for current < toVersion {
		m, ok := r.edges[edgeKey{eventType: eventType, fromVersion: current}]
		if !ok {
			return nil, storeerrors.New(storeerrors.MigrationUnavailable, "no migrator registered for this step").
				WithDetail("event_type", eventType).
				WithDetail("from_version", current)
		}
		chain = append(chain, m)
		current = m.ToVersion()
	}
	return chain, nil
}

// Apply runs payload through the chain from fromVersion to toVersion,
// checking CanMigrate at each step (false yields MigrationRefused).
func (r *Registry) Apply(eventType string, fromVersion, toVersion int, payload map[string]interface{}) (map[string]interface{}, error) {
	chain, err := r.ResolveChain(eventType, fromVersion, toVersion)
	if err != nil {
		return nil, err
	}
	current := payload
	for _, m := range chain {
		if !m.CanMigrate(current) {
			return nil, storeerrors.New(storeerrors.MigrationRefused, "migrator declined to apply").
				WithDetail("event_type", eventType).
				WithDetail("from_version", m.FromVersion()).
				WithDetail("to_version", m.ToVersion())
		}
		migrated, err := m.Migrate(current)
		if err != nil {
			return nil, storeerrors.Wrap(err, storeerrors.Permanent, "migration step failed").
				WithDetail("event_type", eventType).
				WithDetail("from_version", m.FromVersion())
		}
		current = migrated
	}
	return current, nil
}

// DefaultRegistry wires the concrete workflow and AI-interaction migrators.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewWorkflowStartedV1ToV2())
	r.RegisterVersion(SchemaVersion{EventType: "workflow_started", Version: 1, Description: "initial shape"})
	r.RegisterVersion(SchemaVersion{EventType: "workflow_started", Version: 2, Description: "add user context and enhanced metadata"})

	r.Register(NewWorkflowCompletedV1ToV2())
	r.RegisterVersion(SchemaVersion{EventType: "workflow_completed", Version: 1, Description: "initial shape"})
	r.RegisterVersion(SchemaVersion{EventType: "workflow_completed", Version: 2, Description: "add performance metrics and output validation"})

	r.Register(NewPromptSentV1ToV2())
	r.RegisterVersion(SchemaVersion{EventType: "prompt_sent", Version: 1, Description: "initial shape"})
	r.RegisterVersion(SchemaVersion{EventType: "prompt_sent", Version: 2, Description: "add token estimation and enhanced model parameters"})

	r.Register(NewResponseReceivedV1ToV2())
	r.RegisterVersion(SchemaVersion{EventType: "response_received", Version: 1, Description: "initial shape"})
	r.RegisterVersion(SchemaVersion{EventType: "response_received", Version: 2, Description: "add detailed token usage and cost tracking"})

	return r
}
