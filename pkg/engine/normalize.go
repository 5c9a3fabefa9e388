package engine

import (
	"errors"
	"fmt"

	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/provider"
)

// ErrMalformedToolResult is returned when a tool message does not hold a
// JSON object.
var ErrMalformedToolResult = errors.New("malformed tool result")

// Diagnostic records a history message skipped during normalization.
type Diagnostic struct {
	Index  int
	Kind   conversation.Kind
	Reason string
}

// Normalized is the model-ready form of a history.
type Normalized struct {
	Messages    []provider.Message
	Diagnostics []Diagnostic
}

// Normalize converts a history into the message sequence handed to the
// model. It does not modify the history and returns the same output for
// the same input.
//
// Human messages keep only their text. Assistant messages pass through.
// Tool messages are decoded and lose their "files" field; the members of a
// batch are emitted one by one in order. Messages of unknown kind are
// dropped and reported as diagnostics.
func Normalize(history []conversation.Message) (*Normalized, error) {
	out := &Normalized{Messages: make([]provider.Message, 0, len(history))}

	for i, m := range history {
		switch m.Kind {
		case conversation.KindHuman:
			out.Messages = append(out.Messages, provider.Message{
				Role:    provider.RoleUser,
				Content: m.Text,
			})

		case conversation.KindAssistant:
			var calls []conversation.ToolCall
			if len(m.ToolCalls) > 0 {
				calls = append(calls, m.ToolCalls...)
			}
			out.Messages = append(out.Messages, provider.Message{
				Role:      provider.RoleAssistant,
				Content:   m.Text,
				ToolCalls: calls,
			})

		case conversation.KindTool:
			for _, r := range m.Results() {
				tm, err := normalizeToolResult(r)
				if err != nil {
					return nil, fmt.Errorf("message %d: %w", i, err)
				}
				out.Messages = append(out.Messages, tm)
			}

		case conversation.KindUnknown:
			out.Diagnostics = append(out.Diagnostics, Diagnostic{
				Index:  i,
				Kind:   m.Kind,
				Reason: "unrecognized message kind",
			})

		default:
			out.Diagnostics = append(out.Diagnostics, Diagnostic{
				Index:  i,
				Kind:   m.Kind,
				Reason: fmt.Sprintf("unsupported message kind %d", int(m.Kind)),
			})
		}
	}

	return out, nil
}

func normalizeToolResult(m conversation.Message) (provider.Message, error) {
	payload, err := m.Payload()
	if err != nil {
		return provider.Message{}, fmt.Errorf("%w: %v", ErrMalformedToolResult, err)
	}
	delete(payload, conversation.FilesKey)

	return provider.Message{
		Role:       provider.RoleTool,
		Content:    payload,
		Name:       m.ToolName,
		ToolCallID: m.ToolCallID,
	}, nil
}
