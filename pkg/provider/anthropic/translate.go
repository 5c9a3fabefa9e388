package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/provider"
)

var emptyObject = json.RawMessage(`{}`)

// translateRequest converts a provider request into a Messages API payload.
// Tool results become tool_result blocks on a user turn, and adjacent turns
// with the same role are merged since the API requires alternation.
func translateRequest(req *provider.Request, maxTokens int) MessageRequest {
	out := MessageRequest{
		Model:     req.Model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = maxTokens
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		out.Tools = append(out.Tools, Tool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}

	for _, msg := range req.Messages {
		role, blocks := toBlocks(msg)
		if len(blocks) == 0 {
			continue
		}
		if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == role {
			out.Messages[n-1].Content = append(out.Messages[n-1].Content, blocks...)
			continue
		}
		out.Messages = append(out.Messages, MessageParam{Role: role, Content: blocks})
	}

	return out
}

func toBlocks(msg provider.Message) (string, []ContentBlock) {
	switch msg.Role {
	case provider.RoleAssistant:
		var blocks []ContentBlock
		if text := msg.ContentText(); text != "" {
			blocks = append(blocks, ContentBlock{Type: "text", Text: text})
		}
		for _, call := range msg.ToolCalls {
			input := json.RawMessage(call.Arguments)
			if len(strings.TrimSpace(call.Arguments)) == 0 || !json.Valid(input) {
				input = emptyObject
			}
			blocks = append(blocks, ContentBlock{Type: "tool_use", ID: call.ID, Name: call.Name, Input: input})
		}
		return "assistant", blocks
	case provider.RoleTool:
		return "user", []ContentBlock{{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.ContentText()}}
	default:
		return "user", []ContentBlock{{Type: "text", Text: msg.ContentText()}}
	}
}

// translateResponse converts a Messages API response into an assistant
// message. Text blocks are concatenated; tool_use blocks become tool calls.
func translateResponse(resp *MessageResponse) *provider.Response {
	var text strings.Builder
	var calls []conversation.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			id := block.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			calls = append(calls, conversation.ToolCall{ID: id, Name: block.Name, Arguments: args})
		}
	}

	return &provider.Response{
		Message:    conversation.Assistant(text.String(), calls...),
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage: provider.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
}
