package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

func TestResolveChainSameVersionIsNoOp(t *testing.T) {
	r := DefaultRegistry()
	chain, err := r.ResolveChain("workflow_started", 2, 2)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestResolveChainRejectsBackwardMigration(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.ResolveChain("workflow_started", 2, 1)
	require.Error(t, err)
	assert.Equal(t, storeerrors.MigrationUnavailable, storeerrors.Code(err))
}

func TestResolveChainMissingEdgeIsUnavailable(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.ResolveChain("unknown_event_type", 1, 2)
	require.Error(t, err)
	assert.Equal(t, storeerrors.MigrationUnavailable, storeerrors.Code(err))
}

func TestApplyMigratesWorkflowStartedV1ToV2(t *testing.T) {
	r := DefaultRegistry()
	payload := map[string]interface{}{
		"workflow_id":   "wf-1",
		"workflow_type": "onboarding",
	}

	migrated, err := r.Apply("workflow_started", 1, 2, payload)
	require.NoError(t, err)

	assert.Contains(t, migrated, "user_context")
	assert.Equal(t, "wf-1", migrated["workflow_id"])
	// original untouched
	_, hadUserContext := payload["user_context"]
	assert.False(t, hadUserContext)
}

func TestApplyRefusesWhenCanMigrateFails(t *testing.T) {
	r := DefaultRegistry()
	payload := map[string]interface{}{"missing": "required fields"}

	_, err := r.Apply("workflow_started", 1, 2, payload)
	require.Error(t, err)
	assert.Equal(t, storeerrors.MigrationRefused, storeerrors.Code(err))
}

func TestRegisterDuplicateEdgePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(NewWorkflowStartedV1ToV2())

	assert.Panics(t, func() {
		r.Register(NewWorkflowStartedV1ToV2())
	})
}
