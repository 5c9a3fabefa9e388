package tools

import (
	"encoding/json"
	"testing"

	"github.com/rhuss/analyst/pkg/conversation"
)

func TestResult_Content(t *testing.T) {
	r := &Result{
		CallID: "c1",
		Output: map[string]any{"stdout": "done"},
		Files:  map[string]string{"plot.png": "iVBORw=="},
	}

	content, err := r.Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	if payload["stdout"] != "done" {
		t.Errorf("stdout = %v", payload["stdout"])
	}
	files, ok := payload[conversation.FilesKey].(map[string]any)
	if !ok || files["plot.png"] != "iVBORw==" {
		t.Errorf("files = %v", payload[conversation.FilesKey])
	}

	// Output must not be mutated by serialization.
	if _, leaked := r.Output[conversation.FilesKey]; leaked {
		t.Error("Content added files to Output")
	}
}

func TestResult_ContentWithoutFiles(t *testing.T) {
	content, err := (&Result{CallID: "c1", Output: map[string]any{"stdout": ""}}).Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if content != `{"stdout":""}` {
		t.Errorf("content = %s", content)
	}
}

func TestErrorResult(t *testing.T) {
	r := ErrorResult("c1", "sandbox returned HTTP %d", 502)
	if !r.IsError {
		t.Error("expected IsError")
	}
	if r.Output["error"] != "sandbox returned HTTP 502" {
		t.Errorf("error = %v", r.Output["error"])
	}
}
