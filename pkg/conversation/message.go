// Package conversation defines the message model shared by the agent loop,
// the checkpoint store and the HTTP surface.
//
// A Message is a closed tagged variant over four kinds: human, assistant,
// tool result and unknown. Consumers switch on Kind exhaustively; the
// unknown arm exists so that records restored from elsewhere can be carried
// without being silently reinterpreted.
package conversation

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant of a Message.
type Kind int

const (
	// KindUnknown marks a message whose variant could not be determined.
	KindUnknown Kind = iota

	// KindHuman is a message authored by the caller.
	KindHuman

	// KindAssistant is a message produced by the model. It may carry
	// tool-call requests.
	KindAssistant

	// KindTool is the result of one tool invocation, or a batch of sibling
	// results produced for the same assistant message.
	KindTool
)

// String returns the lowercase tag name.
func (k Kind) String() string {
	switch k {
	case KindHuman:
		return "human"
	case KindAssistant:
		return "assistant"
	case KindTool:
		return "tool"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized tags map
// to KindUnknown rather than failing.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "human", "user":
		*k = KindHuman
	case "assistant", "ai":
		*k = KindAssistant
	case "tool":
		*k = KindTool
	default:
		*k = KindUnknown
	}
	return nil
}

// FilesKey is the field of a tool payload that holds produced files.
const FilesKey = "files"

// ToolCall is a model-emitted request to invoke a tool.
type ToolCall struct {
	// ID is the unique call identifier assigned by the model.
	ID string `json:"id"`

	// Name is the tool name.
	Name string `json:"name"`

	// Arguments is the JSON-encoded argument object.
	Arguments string `json:"arguments"`
}

// Attachment is an uploaded file, already encoded for transport.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`

	// Content is the base64 (standard encoding) file body.
	Content string `json:"content"`
}

// Message is one entry in a conversation history.
type Message struct {
	Kind Kind `json:"kind"`

	// Text is the textual content of human and assistant messages.
	Text string `json:"text,omitempty"`

	// Attachments are the files uploaded with a human message.
	Attachments []Attachment `json:"attachments,omitempty"`

	// ToolCalls are the pending tool-call requests of an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName link a tool message to its request.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	// Content is the raw JSON payload of a tool message, including files.
	Content string `json:"content,omitempty"`

	// Batch holds sibling tool results when one assistant message requested
	// several calls. When set, the tool fields above are empty.
	Batch []Message `json:"batch,omitempty"`
}

// Human creates a human message.
func Human(text string, attachments ...Attachment) Message {
	return Message{Kind: KindHuman, Text: text, Attachments: attachments}
}

// Assistant creates an assistant message.
func Assistant(text string, calls ...ToolCall) Message {
	return Message{Kind: KindAssistant, Text: text, ToolCalls: calls}
}

// ToolResultMessage creates a single tool-result message.
func ToolResultMessage(callID, toolName, content string) Message {
	return Message{Kind: KindTool, ToolCallID: callID, ToolName: toolName, Content: content}
}

// ToolBatch creates a tool message holding sibling results.
func ToolBatch(results ...Message) Message {
	return Message{Kind: KindTool, Batch: results}
}

// HasToolCalls reports whether the message carries pending tool calls.
func (m Message) HasToolCalls() bool {
	return m.Kind == KindAssistant && len(m.ToolCalls) > 0
}

// IsBatch reports whether a tool message is a batch of sibling results.
func (m Message) IsBatch() bool {
	return m.Kind == KindTool && len(m.Batch) > 0
}

// Results returns the individual tool results held by a tool message:
// the batch members for a batch, or the message itself otherwise.
func (m Message) Results() []Message {
	if m.Kind != KindTool {
		return nil
	}
	if m.IsBatch() {
		return m.Batch
	}
	return []Message{m}
}

// Payload decodes the JSON object held by a tool message.
func (m Message) Payload() (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(m.Content), &payload); err != nil {
		return nil, fmt.Errorf("tool result %q: content is not a JSON object: %w", m.ToolCallID, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("tool result %q: content is null", m.ToolCallID)
	}
	return payload, nil
}

// Files returns the files produced by a tool message (all batch members
// included). Entries whose value is not a string are skipped.
func (m Message) Files() (map[string]string, error) {
	files := make(map[string]string)
	for _, r := range m.Results() {
		payload, err := r.Payload()
		if err != nil {
			return nil, err
		}
		raw, ok := payload[FilesKey].(map[string]any)
		if !ok {
			continue
		}
		for name, v := range raw {
			if s, ok := v.(string); ok {
				files[name] = s
			}
		}
	}
	return files, nil
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.Attachments != nil {
		c.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.ToolCalls != nil {
		c.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	if m.Batch != nil {
		c.Batch = make([]Message, len(m.Batch))
		for i, b := range m.Batch {
			c.Batch[i] = b.Clone()
		}
	}
	return c
}
