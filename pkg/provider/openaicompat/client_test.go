package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3"

	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/provider"
)

func TestComplete_ToolCallRoundTrip(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-test",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "python", "arguments": "{\"code\":\"print(2+2)\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 4, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	p, err := New(Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test", MaxTokens: 256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := p.Complete(context.Background(), &provider.Request{
		Model:  "gpt-test",
		System: "you are helpful",
		Messages: []provider.Message{
			{Role: provider.RoleUser, Content: "2+2?"},
			{Role: provider.RoleAssistant, Content: "", ToolCalls: []conversation.ToolCall{{ID: "c0", Name: "python", Arguments: `{}`}}},
			{Role: provider.RoleTool, Content: map[string]any{"stdout": "4"}, ToolCallID: "c0", Name: "python"},
		},
		Tools: []provider.ToolDefinition{{
			Name:        "python",
			Description: "run python",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"code":{"type":"string"}}}`),
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want 4 (system + 3)", len(msgs))
	}
	tool, _ := msgs[3].(map[string]any)
	if tool["role"] != "tool" || tool["tool_call_id"] != "c0" || tool["content"] != `{"stdout":"4"}` {
		t.Errorf("tool message = %v", tool)
	}
	if body["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
	if tools, _ := body["tools"].([]any); len(tools) != 1 {
		t.Errorf("tools = %v", body["tools"])
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(resp.Message.ToolCalls))
	}
	if got := resp.Message.ToolCalls[0]; got.ID != "call_1" || got.Name != "python" || got.Arguments != `{"code":"print(2+2)"}` {
		t.Errorf("tool call = %+v", got)
	}
	if resp.StopReason != "tool_calls" {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 9 || resp.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestComplete_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL, APIKey: "k"})
	if _, err := p.Complete(context.Background(), &provider.Request{Model: "m"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTranslateResponse_NoChoices(t *testing.T) {
	if _, err := translateResponse(&openai.ChatCompletion{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
