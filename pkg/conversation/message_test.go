package conversation

import (
	"encoding/json"
	"testing"
)

func TestKind_TextRoundTrip(t *testing.T) {
	tests := []struct {
		tag  string
		want Kind
	}{
		{"human", KindHuman},
		{"user", KindHuman},
		{"assistant", KindAssistant},
		{"ai", KindAssistant},
		{"tool", KindTool},
		{"system", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			var k Kind
			if err := k.UnmarshalText([]byte(tt.tag)); err != nil {
				t.Fatalf("UnmarshalText: %v", err)
			}
			if k != tt.want {
				t.Errorf("kind = %v, want %v", k, tt.want)
			}
		})
	}
}

func TestMessage_JSONKeepsUnknownKind(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"kind":"function","text":"x"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Kind != KindUnknown {
		t.Errorf("kind = %v, want unknown", m.Kind)
	}
}

func TestMessage_HasToolCalls(t *testing.T) {
	if Assistant("hi").HasToolCalls() {
		t.Error("plain assistant message should not have tool calls")
	}
	if !Assistant("", ToolCall{ID: "c1", Name: "python"}).HasToolCalls() {
		t.Error("expected tool calls")
	}
	// Tool calls on a non-assistant message never count.
	m := Human("x")
	m.ToolCalls = []ToolCall{{ID: "c1"}}
	if m.HasToolCalls() {
		t.Error("human message must not report tool calls")
	}
}

func TestMessage_Files(t *testing.T) {
	single := ToolResultMessage("c1", "python", `{"result":"ok","files":{"plot.png":"aGk="}}`)
	files, err := single.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if files["plot.png"] != "aGk=" {
		t.Errorf("files = %v", files)
	}

	batch := ToolBatch(
		ToolResultMessage("c1", "python", `{"files":{"a.csv":"YQ=="}}`),
		ToolResultMessage("c2", "python", `{"files":{"b.csv":"Yg==","a.csv":"Yw=="}}`),
	)
	files, err = batch.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 || files["a.csv"] != "Yw==" || files["b.csv"] != "Yg==" {
		t.Errorf("batch files = %v", files)
	}

	if _, err := ToolResultMessage("c3", "python", "not json").Files(); err == nil {
		t.Error("expected error for malformed content")
	}
}

func TestMessage_CloneIsDeep(t *testing.T) {
	orig := ToolBatch(ToolResultMessage("c1", "python", `{}`))
	c := orig.Clone()
	c.Batch[0].ToolCallID = "changed"
	if orig.Batch[0].ToolCallID != "c1" {
		t.Error("clone shares batch storage with original")
	}
}

func TestConversation_Validate(t *testing.T) {
	c := New("t1")
	c.Append(
		Human("plot"),
		Assistant("", ToolCall{ID: "c1", Name: "python"}),
		ToolResultMessage("c1", "python", `{}`),
	)
	if err := c.Validate(); err != nil {
		t.Errorf("valid conversation rejected: %v", err)
	}

	c.Append(ToolResultMessage("c9", "python", `{}`))
	if err := c.Validate(); err == nil {
		t.Error("expected dangling tool result to be rejected")
	}
}

func TestConversation_Attachments(t *testing.T) {
	c := New("t1")
	c.Append(
		Human("one", Attachment{Filename: "a.csv", Content: "MQ=="}),
		Assistant("ok"),
		Human("two", Attachment{Filename: "b.csv", Content: "Mg=="}, Attachment{Filename: "a.csv", Content: "Mw=="}),
	)

	got := c.Attachments()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Filename != "a.csv" || got[0].Content != "Mw==" {
		t.Errorf("got[0] = %+v, want replaced a.csv", got[0])
	}
	if got[1].Filename != "b.csv" {
		t.Errorf("got[1] = %+v", got[1])
	}
}
