package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowCompletedV1ToV2DerivesPerformanceMetrics(t *testing.T) {
	m := NewWorkflowCompletedV1ToV2()
	payload := map[string]interface{}{
		"workflow_id": "wf-1",
		"output_data": map[string]interface{}{"result": "ok"},
		"duration_ms": float64(1500),
	}
	require.True(t, m.CanMigrate(payload))

	out, err := m.Migrate(payload)
	require.NoError(t, err)

	metrics := out["performance_metrics"].(map[string]interface{})
	assert.Equal(t, int64(1500), metrics["total_duration_ms"])

	quality := out["quality_metrics"].(map[string]interface{})
	assert.Equal(t, 1.0, quality["success_rate"])
}

func TestWorkflowCompletedV1ToV2RefusesMissingOutputData(t *testing.T) {
	m := NewWorkflowCompletedV1ToV2()
	assert.False(t, m.CanMigrate(map[string]interface{}{"workflow_id": "wf-1"}))
}

func TestPromptSentV1ToV2EstimatesTokensFromLength(t *testing.T) {
	m := NewPromptSentV1ToV2()
	payload := map[string]interface{}{
		"request_id": "req-1",
		"prompt":     "0123456789abcdef", // 16 chars
	}
	require.True(t, m.CanMigrate(payload))

	out, err := m.Migrate(payload)
	require.NoError(t, err)

	tokens := out["estimated_tokens"].(map[string]interface{})
	assert.Equal(t, 4, tokens["prompt_tokens"]) // 16 / 4

	params := out["model_parameters"].(map[string]interface{})
	assert.Equal(t, 0.7, params["temperature"])
}

func TestPromptSentV1ToV2PreservesExplicitModelParameters(t *testing.T) {
	m := NewPromptSentV1ToV2()
	payload := map[string]interface{}{
		"request_id": "req-1",
		"prompt":     "hi",
		"model_parameters": map[string]interface{}{
			"temperature": 0.2,
		},
	}

	out, err := m.Migrate(payload)
	require.NoError(t, err)

	params := out["model_parameters"].(map[string]interface{})
	assert.Equal(t, 0.2, params["temperature"])
	assert.Equal(t, 1.0, params["top_p"])
}

func TestResponseReceivedV1ToV2SumsTokensWhenTotalMissing(t *testing.T) {
	m := NewResponseReceivedV1ToV2()
	payload := map[string]interface{}{
		"request_id":        "req-1",
		"response":          "```go\nfmt.Println(1)\n```",
		"prompt_tokens":     float64(10),
		"completion_tokens": float64(20),
	}
	require.True(t, m.CanMigrate(payload))

	out, err := m.Migrate(payload)
	require.NoError(t, err)

	usage := out["detailed_usage"].(map[string]interface{})
	assert.Equal(t, int64(30), usage["total_tokens"])

	quality := out["quality_metrics"].(map[string]interface{})
	assert.Equal(t, true, quality["contains_code"])
}

func TestWorkflowStartedV1ToV2AddsDefaultsWithoutMutatingInput(t *testing.T) {
	m := NewWorkflowStartedV1ToV2()
	payload := map[string]interface{}{
		"workflow_id":   "wf-1",
		"workflow_type": "onboarding",
	}

	out, err := m.Migrate(payload)
	require.NoError(t, err)

	assert.Contains(t, out, "user_context")
	metadata := out["metadata"].(map[string]interface{})
	assert.Equal(t, "normal", metadata["priority"])

	_, payloadHasMetadata := payload["metadata"]
	assert.False(t, payloadHasMetadata)
}
