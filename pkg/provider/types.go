package provider

import (
	"encoding/json"
	"fmt"

	"github.com/rhuss/analyst/pkg/conversation"
)

// Message roles in the normalized model context.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Request is the backend-facing request. It carries only what the model
// needs: the normalized history and the tools it may call.
type Request struct {
	Model     string           `json:"model"`
	System    string           `json:"system,omitempty"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// Message is one entry of the normalized model context.
//
// Content is a string for user and assistant messages and a JSON object
// (map[string]any) for tool messages.
type Message struct {
	Role       string                  `json:"role"`
	Content    any                     `json:"content"`
	ToolCalls  []conversation.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                  `json:"tool_call_id,omitempty"`
	Name       string                  `json:"name,omitempty"`
}

// ContentText renders Content as text. Structured content is JSON-encoded.
func (m Message) ContentText() string {
	switch c := m.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprint(c)
		}
		return string(b)
	}
}

// ToolDefinition declares a tool the model may call.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Usage reports token consumption of one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the backend's complete response.
type Response struct {
	// Message is the assistant message (KindAssistant).
	Message    conversation.Message `json:"message"`
	Model      string               `json:"model"`
	StopReason string               `json:"stop_reason,omitempty"`
	Usage      Usage                `json:"usage"`
}

// Error surfaces a non-2xx backend reply.
type Error struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *Error) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error (%d, %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}
