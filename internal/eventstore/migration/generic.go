package migration

// FieldRenameMigration is a generic migrator that renames a set of fields.
type FieldRenameMigration struct {
	baseMigrator
	Renames map[string]string // old key -> new key
}

// NewFieldRenameMigration constructs a unit-step rename migrator.
func NewFieldRenameMigration(eventType string, fromVersion int, renames map[string]string, description string) *FieldRenameMigration {
	return &FieldRenameMigration{
		baseMigrator: baseMigrator{eventType: eventType, fromVersion: fromVersion, toVersion: fromVersion + 1, description: description},
		Renames:      renames,
	}
}

// CanMigrate always applies: a missing source field is a no-op rename, not a refusal.
func (m *FieldRenameMigration) CanMigrate(payload map[string]interface{}) bool { return true }

// Migrate renames each configured key if present.
func (m *FieldRenameMigration) Migrate(payload map[string]interface{}) (map[string]interface{}, error) {
	out := copyPayload(payload)
	for oldKey, newKey := range m.Renames {
		if v, ok := out[oldKey]; ok {
			out[newKey] = v
			delete(out, oldKey)
		}
	}
	return out, nil
}

// FieldRemovalMigration is a generic migrator that drops a set of fields.
type FieldRemovalMigration struct {
	baseMigrator
	Fields []string
}

// NewFieldRemovalMigration constructs a unit-step removal migrator.
func NewFieldRemovalMigration(eventType string, fromVersion int, fields []string, description string) *FieldRemovalMigration {
	return &FieldRemovalMigration{
		baseMigrator: baseMigrator{eventType: eventType, fromVersion: fromVersion, toVersion: fromVersion + 1, description: description},
		Fields:       fields,
	}
}

// CanMigrate always applies.
func (m *FieldRemovalMigration) CanMigrate(payload map[string]interface{}) bool { return true }

// Migrate drops each configured field if present.
func (m *FieldRemovalMigration) Migrate(payload map[string]interface{}) (map[string]interface{}, error) {
	out := copyPayload(payload)
	for _, field := range m.Fields {
		delete(out, field)
	}
	return out, nil
}
