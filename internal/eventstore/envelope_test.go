package eventstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

func TestComputeChecksumIsDeterministicRegardlessOfKeyOrder(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1, "c": map[string]interface{}{"y": 2, "x": 1}}
	b := map[string]interface{}{"a": 1, "c": map[string]interface{}{"x": 1, "y": 2}, "b": 2}

	sumA, err := ComputeChecksum(a)
	require.NoError(t, err)
	sumB, err := ComputeChecksum(b)
	require.NoError(t, err)

	assert.Equal(t, sumA, sumB)
}

func TestComputeChecksumDiffersOnDifferentData(t *testing.T) {
	sumA, err := ComputeChecksum(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	sumB, err := ComputeChecksum(map[string]interface{}{"a": 2})
	require.NoError(t, err)

	assert.NotEqual(t, sumA, sumB)
}

func TestVerifyChecksumDetectsTampering(t *testing.T) {
	env := NewEnvelope(uuid.New(), "workflow", "workflow_started", 1, 1,
		map[string]interface{}{"workflow_id": "wf-1"}, nil)

	sum, err := ComputeChecksum(env.EventData)
	require.NoError(t, err)
	env.Checksum = sum

	require.NoError(t, env.VerifyChecksum())

	env.EventData["workflow_id"] = "tampered"
	err = env.VerifyChecksum()
	require.Error(t, err)
	assert.Equal(t, storeerrors.IntegrityError, storeerrors.Code(err))
}

func TestValidateRejectsZeroAggregateID(t *testing.T) {
	env := NewEnvelope(uuid.Nil, "workflow", "workflow_started", 1, 1,
		map[string]interface{}{"workflow_id": "wf-1"}, nil)
	env.EventID = uuid.New()

	err := env.Validate()
	require.Error(t, err)
	assert.Equal(t, storeerrors.Permanent, storeerrors.Code(err))
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	env := &Envelope{}
	err := env.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedEnvelope(t *testing.T) {
	env := NewEnvelope(uuid.New(), "workflow", "workflow_started", 1, 1,
		map[string]interface{}{"workflow_id": "wf-1", "workflow_type": "onboarding"}, nil)
	env.Checksum, _ = ComputeChecksum(env.EventData)

	assert.NoError(t, env.Validate())
}
