package workflow

import "time"

// ExecutionContext is threaded between nodes during a single workflow run.
type ExecutionContext struct {
	Data        []any
	Files       map[string]FileInfo
	Query       map[string]string
	Headers     map[string]string
	Metadata    map[string]any
	ProjectSlug string
}

// FileInfo describes an uploaded file referenced by a $file.<name> pin.
type FileInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
}

// ExecutionResult is what a node handler returns; it becomes the next
// node's context.Data/Metadata, or the final response on completion.
type ExecutionResult struct {
	Data     []any
	Metadata map[string]any
	Continue bool
}

// FromWebhookData builds the context a webhook-triggered execution starts
// with: the parsed request body wrapped as a single-item data array.
func FromWebhookData(workflowID string, payload any, projectSlug string) ExecutionContext {
	return ExecutionContext{
		Data: []any{payload},
		Metadata: map[string]any{
			"workflow_id": workflowID,
			"started_at":  time.Now().UTC().Format(time.RFC3339),
		},
		ProjectSlug: projectSlug,
	}
}

// FromArrayData builds a context from an already-batched data array.
func FromArrayData(workflowID string, data []any, projectSlug string) ExecutionContext {
	return ExecutionContext{
		Data: data,
		Metadata: map[string]any{
			"workflow_id": workflowID,
			"started_at":  time.Now().UTC().Format(time.RFC3339),
		},
		ProjectSlug: projectSlug,
	}
}

// FromCronTrigger builds the context a cron-fired execution starts with.
func FromCronTrigger(workflowID, triggerNodeID, projectSlug string) ExecutionContext {
	now := time.Now().UTC().Format(time.RFC3339)
	trigger := map[string]any{
		"trigger_type": "cron",
		"timestamp":    now,
		"workflow_id":  workflowID,
		"project_slug": projectSlug,
	}
	return ExecutionContext{
		Data: []any{trigger},
		Metadata: map[string]any{
			"workflow_id":     workflowID,
			"trigger_node_id": triggerNodeID,
			"trigger_type":    "cron",
			"started_at":      now,
		},
		ProjectSlug: projectSlug,
	}
}
