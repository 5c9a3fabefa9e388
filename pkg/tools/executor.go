package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/provider"
)

// Executor executes calls for one tool.
type Executor interface {
	// Definition returns the tool declaration bound to the model.
	Definition() provider.ToolDefinition

	// Execute runs the tool. Failures of the tool itself (bad arguments,
	// non-zero exit, unreachable sandbox) are reported as a Result with
	// IsError set. A returned error aborts the turn.
	Execute(ctx context.Context, call Call) (*Result, error)

	// Close releases executor resources.
	Close() error
}

// Call is a model's request to invoke a tool.
type Call struct {
	// ID is the unique call identifier from the model.
	ID string

	// Name is the tool name.
	Name string

	// Arguments is the JSON-encoded argument object.
	Arguments string

	// Files are the conversation's uploaded files, staged as tool input.
	Files []conversation.Attachment
}

// Result is the output of one tool execution.
type Result struct {
	// CallID matches the originating Call.ID.
	CallID string

	// Output holds the structured result fields.
	Output map[string]any

	// Files maps produced filenames to base64 content.
	Files map[string]string

	// IsError indicates that Output describes a failure.
	IsError bool
}

// ErrorResult builds a Result reporting a tool failure to the model.
func ErrorResult(callID, format string, args ...any) *Result {
	return &Result{
		CallID:  callID,
		Output:  map[string]any{"error": fmt.Sprintf(format, args...)},
		IsError: true,
	}
}

// Content serializes the result as the JSON payload of a tool message.
// Files are placed under conversation.FilesKey when present.
func (r *Result) Content() (string, error) {
	payload := make(map[string]any, len(r.Output)+1)
	for k, v := range r.Output {
		payload[k] = v
	}
	if len(r.Files) > 0 {
		payload[conversation.FilesKey] = r.Files
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode result of tool call %q: %w", r.CallID, err)
	}
	return string(b), nil
}
