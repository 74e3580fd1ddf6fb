package migration

import (
	"strings"
	"time"
)

// Concrete workflow and AI-interaction migrators.

// WorkflowStartedV1ToV2 adds user_context and enhanced metadata
// (migration_timestamp, priority, retry_config) to a workflow_started event.
type WorkflowStartedV1ToV2 struct{ baseMigrator }

// NewWorkflowStartedV1ToV2 constructs the migrator.
func NewWorkflowStartedV1ToV2() *WorkflowStartedV1ToV2 {
	return &WorkflowStartedV1ToV2{baseMigrator{
		eventType:   "workflow_started",
		fromVersion: 1,
		toVersion:   2,
		description: "add user context and enhanced metadata",
	}}
}

// CanMigrate requires the v1 shape: workflow_id and workflow_type present.
func (m *WorkflowStartedV1ToV2) CanMigrate(payload map[string]interface{}) bool {
	_, hasID := payload["workflow_id"]
	_, hasType := payload["workflow_type"]
	return hasID && hasType
}

// Migrate applies the v1->v2 transform.
func (m *WorkflowStartedV1ToV2) Migrate(payload map[string]interface{}) (map[string]interface{}, error) {
	out := copyPayload(payload)

	if _, ok := out["user_context"]; !ok {
		out["user_context"] = map[string]interface{}{
			"user_id":    nil,
			"session_id": nil,
			"ip_address": nil,
		}
	}

	metadata, _ := out["metadata"].(map[string]interface{})
	metadata = copyPayload(metadata)
	metadata["schema_migrated_from"] = "v1"
	metadata["migration_timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := metadata["priority"]; !ok {
		metadata["priority"] = "normal"
	}
	if _, ok := metadata["retry_config"]; !ok {
		metadata["retry_config"] = map[string]interface{}{
			"max_retries":         3,
			"retry_delay_seconds": 60,
		}
	}
	out["metadata"] = metadata

	return out, nil
}

// WorkflowCompletedV1ToV2 adds performance_metrics, output_validation, and
// quality_metrics to a workflow_completed event.
type WorkflowCompletedV1ToV2 struct{ baseMigrator }

// NewWorkflowCompletedV1ToV2 constructs the migrator.
func NewWorkflowCompletedV1ToV2() *WorkflowCompletedV1ToV2 {
	return &WorkflowCompletedV1ToV2{baseMigrator{
		eventType:   "workflow_completed",
		fromVersion: 1,
		toVersion:   2,
		description: "add performance metrics and output validation",
	}}
}

// CanMigrate requires the v1 shape: workflow_id and output_data present.
func (m *WorkflowCompletedV1ToV2) CanMigrate(payload map[string]interface{}) bool {
	_, hasID := payload["workflow_id"]
	_, hasOutput := payload["output_data"]
	return hasID && hasOutput
}

// Migrate applies the v1->v2 transform.
func (m *WorkflowCompletedV1ToV2) Migrate(payload map[string]interface{}) (map[string]interface{}, error) {
	out := copyPayload(payload)

	if _, ok := out["performance_metrics"]; !ok {
		durationMs := int64(0)
		if d, ok := out["duration_ms"].(float64); ok {
			durationMs = int64(d)
		}
		out["performance_metrics"] = map[string]interface{}{
			"total_duration_ms":          durationMs,
			"node_execution_times":       map[string]interface{}{},
			"memory_usage_peak_mb":       nil,
			"cpu_usage_average_percent":  nil,
			"network_requests_count":    0,
			"cache_hit_ratio":           nil,
		}
	}

	if _, ok := out["output_validation"]; !ok {
		out["output_validation"] = map[string]interface{}{
			"is_valid":          true,
			"validation_errors": []interface{}{},
			"schema_version":    "unknown",
			"validated_at":      time.Now().UTC().Format(time.RFC3339),
		}
	}

	if _, ok := out["quality_metrics"]; !ok {
		out["quality_metrics"] = map[string]interface{}{
			"success_rate":       1.0,
			"error_count":        0,
			"warning_count":      0,
			"completeness_score": 1.0,
		}
	}

	return out, nil
}

// PromptSentV1ToV2 adds estimated_tokens, enhanced model_parameters, and
// cost_estimation to a prompt_sent event.
type PromptSentV1ToV2 struct{ baseMigrator }

// NewPromptSentV1ToV2 constructs the migrator.
func NewPromptSentV1ToV2() *PromptSentV1ToV2 {
	return &PromptSentV1ToV2{baseMigrator{
		eventType:   "prompt_sent",
		fromVersion: 1,
		toVersion:   2,
		description: "add token estimation and enhanced model parameters",
	}}
}

// CanMigrate requires the v1 shape: request_id and prompt present.
func (m *PromptSentV1ToV2) CanMigrate(payload map[string]interface{}) bool {
	_, hasReq := payload["request_id"]
	_, hasPrompt := payload["prompt"]
	return hasReq && hasPrompt
}

// Migrate applies the v1->v2 transform.
func (m *PromptSentV1ToV2) Migrate(payload map[string]interface{}) (map[string]interface{}, error) {
	out := copyPayload(payload)

	if _, ok := out["estimated_tokens"]; !ok {
		prompt, _ := out["prompt"].(string)
		out["estimated_tokens"] = map[string]interface{}{
			"prompt_tokens":      len(prompt) / 4,
			"estimation_method":  "simple_character_count",
			"estimated_at":       time.Now().UTC().Format(time.RFC3339),
		}
	}

	params, _ := out["model_parameters"].(map[string]interface{})
	params = copyPayload(params)
	if _, ok := params["temperature"]; !ok {
		params["temperature"] = 0.7
	}
	if _, ok := params["max_tokens"]; !ok {
		params["max_tokens"] = nil
	}
	if _, ok := params["top_p"]; !ok {
		params["top_p"] = 1.0
	}
	if _, ok := params["frequency_penalty"]; !ok {
		params["frequency_penalty"] = 0.0
	}
	if _, ok := params["presence_penalty"]; !ok {
		params["presence_penalty"] = 0.0
	}
	out["model_parameters"] = params

	if _, ok := out["cost_estimation"]; !ok {
		out["cost_estimation"] = map[string]interface{}{
			"estimated_cost_usd":    nil,
			"cost_model":            "unknown",
			"estimation_timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}

	return out, nil
}

// ResponseReceivedV1ToV2 adds detailed_usage, cost_breakdown,
// quality_metrics, and performance_metrics to a response_received event.
type ResponseReceivedV1ToV2 struct{ baseMigrator }

// NewResponseReceivedV1ToV2 constructs the migrator.
func NewResponseReceivedV1ToV2() *ResponseReceivedV1ToV2 {
	return &ResponseReceivedV1ToV2{baseMigrator{
		eventType:   "response_received",
		fromVersion: 1,
		toVersion:   2,
		description: "add detailed token usage and cost tracking",
	}}
}

// CanMigrate requires the v1 shape: request_id and response present.
func (m *ResponseReceivedV1ToV2) CanMigrate(payload map[string]interface{}) bool {
	_, hasReq := payload["request_id"]
	_, hasResp := payload["response"]
	return hasReq && hasResp
}

// Migrate applies the v1->v2 transform.
func (m *ResponseReceivedV1ToV2) Migrate(payload map[string]interface{}) (map[string]interface{}, error) {
	out := copyPayload(payload)

	asInt64 := func(v interface{}) int64 {
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int64:
			return n
		case int:
			return int64(n)
		default:
			return 0
		}
	}

	if _, ok := out["detailed_usage"]; !ok {
		promptTokens := asInt64(out["prompt_tokens"])
		completionTokens := asInt64(out["completion_tokens"])
		totalTokens := asInt64(out["total_tokens"])
		if totalTokens == 0 {
			totalTokens = promptTokens + completionTokens
		}
		out["detailed_usage"] = map[string]interface{}{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      totalTokens,
			"cached_tokens":     0,
			"reasoning_tokens":  0,
			"tool_use_tokens":   0,
		}
	}

	if _, ok := out["cost_breakdown"]; !ok {
		var costUSD interface{}
		if v, ok := out["cost_usd"].(float64); ok {
			costUSD = v
		}
		out["cost_breakdown"] = map[string]interface{}{
			"total_cost_usd":       costUSD,
			"prompt_cost_usd":      nil,
			"completion_cost_usd":  nil,
			"additional_fees_usd": 0.0,
			"currency":            "USD",
			"rate_timestamp":      time.Now().UTC().Format(time.RFC3339),
		}
	}

	if _, ok := out["quality_metrics"]; !ok {
		response, _ := out["response"].(string)
		out["quality_metrics"] = map[string]interface{}{
			"response_length":       len(response),
			"estimated_readability": nil,
			"language_detected":     nil,
			"contains_code":         strings.Contains(response, "```"),
			"contains_links":        strings.Contains(response, "http"),
			"sentiment_score":       nil,
		}
	}

	if _, ok := out["performance_metrics"]; !ok {
		durationMs := asInt64(out["duration_ms"])
		out["performance_metrics"] = map[string]interface{}{
			"total_duration_ms":       durationMs,
			"time_to_first_token_ms": nil,
			"tokens_per_second":      nil,
		}
	}

	return out, nil
}
