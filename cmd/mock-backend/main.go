// Command mock-backend runs a deterministic Anthropic Messages API server
// for local development and smoke tests without an API key.
//
// Behaviour depends on the last turn of the request:
//   - a tool_result turn is answered with a short text summarizing it;
//   - a user text mentioning "plot" or "chart" gets a tool_use block that
//     runs matplotlib code writing plot.png to $OUTPUT_DIR;
//   - anything else is echoed back as text.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rhuss/analyst/pkg/provider/anthropic"
	transporthttp "github.com/rhuss/analyst/pkg/transport/http"
)

const plotCode = `import os
import matplotlib
matplotlib.use("Agg")
import matplotlib.pyplot as plt
xs = list(range(-5, 6))
plt.plot(xs, [x * x for x in xs])
plt.savefig(os.path.join(os.environ.get("OUTPUT_DIR", "."), "plot.png"))
print("saved plot.png")
`

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	addr := net.JoinHostPort("", port)

	slog.Info("mock backend starting", "addr", addr)
	srv := transporthttp.NewServer(newRouter(), transporthttp.WithAddr(addr))
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("mock backend failed", "error", err)
		os.Exit(1)
	}
}

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/v1/messages", handleMessages)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return r
}

func handleMessages(w http.ResponseWriter, r *http.Request) {
	var req anthropic.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages: at least one message is required")
		return
	}

	resp := anthropic.MessageResponse{
		ID:    "msg_" + uuid.NewString(),
		Type:  "message",
		Role:  "assistant",
		Model: req.Model,
	}
	resp.Content, resp.StopReason = reply(req)
	resp.Usage.InputTokens = len(req.Messages)
	resp.Usage.OutputTokens = len(resp.Content)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// reply picks the deterministic answer for the last turn.
func reply(req anthropic.MessageRequest) ([]anthropic.ContentBlock, string) {
	last := req.Messages[len(req.Messages)-1]

	var text string
	for _, b := range last.Content {
		switch b.Type {
		case "tool_result":
			return []anthropic.ContentBlock{{
				Type: "text",
				Text: fmt.Sprintf("The code ran. Result: %s", b.Content),
			}}, "end_turn"
		case "text":
			text = b.Text
		}
	}

	lower := strings.ToLower(text)
	if len(req.Tools) > 0 && (strings.Contains(lower, "plot") || strings.Contains(lower, "chart")) {
		input, _ := json.Marshal(map[string]string{"code": plotCode})
		return []anthropic.ContentBlock{
			{Type: "text", Text: "I'll plot that with matplotlib."},
			{Type: "tool_use", ID: "toolu_" + uuid.NewString()[:12], Name: req.Tools[0].Name, Input: input},
		}, "tool_use"
	}

	return []anthropic.ContentBlock{{Type: "text", Text: "You said: " + text}}, "end_turn"
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	var body anthropic.ErrorResponse
	body.Error.Type = typ
	body.Error.Message = msg
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		Type string `json:"type"`
		anthropic.ErrorResponse
	}{Type: "error", ErrorResponse: body})
}
