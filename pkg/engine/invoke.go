package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/provider"
	"github.com/rhuss/analyst/pkg/tools"
)

// ToolSet is the set of tools bound to the model. The tool registry
// implements it.
type ToolSet interface {
	Definitions() []provider.ToolDefinition
	Execute(ctx context.Context, call tools.Call) (*tools.Result, error)
}

// Invoke executes the calls in request order and packages the results as
// one tool message per call, or as a batch when there are several. Files
// are staged as tool input for every call.
//
// Tool failures come back as error results and are kept. An error from the
// tool set itself aborts the invocation.
func Invoke(ctx context.Context, ts ToolSet, calls []conversation.ToolCall, files []conversation.Attachment) (conversation.Message, error) {
	if len(calls) == 0 {
		return conversation.Message{}, fmt.Errorf("invoke tools: %w", ErrInvalidState)
	}

	results := make([]conversation.Message, 0, len(calls))
	for _, call := range calls {
		res, err := ts.Execute(ctx, tools.Call{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
			Files:     files,
		})
		if err != nil {
			return conversation.Message{}, fmt.Errorf("tool %q (call %s): %w", call.Name, call.ID, err)
		}

		content, err := res.Content()
		if err != nil {
			return conversation.Message{}, err
		}

		if res.IsError {
			slog.Debug("tool returned error result", "call_id", call.ID, "tool", call.Name)
		}
		results = append(results, conversation.ToolResultMessage(call.ID, call.Name, content))
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return conversation.ToolBatch(results...), nil
}
