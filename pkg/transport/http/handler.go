package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/debug"
	"github.com/rhuss/analyst/pkg/engine"
	"github.com/rhuss/analyst/pkg/transport"
)

// ThreadIDHeader selects the conversation when the form has no thread_id.
const ThreadIDHeader = "X-Thread-ID"

// Runner runs one agent turn. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context, threadID, input string, attachments []conversation.Attachment) (*engine.Result, error)
}

// GenerateResponse is the body of a successful POST /generate.
type GenerateResponse struct {
	Messages []string          `json:"messages"`
	Files    map[string]string `json:"files"`
}

// Handler serves the generate endpoint.
type Handler struct {
	runner      Runner
	maxBodySize int64
	logger      *slog.Logger
}

// NewHandler creates a Handler. maxBodySize bounds the multipart body;
// zero means 32 MiB.
func NewHandler(r Runner, maxBodySize int64, logger *slog.Logger) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = 32 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: r, maxBodySize: maxBodySize, logger: logger}
}

// Generate handles POST /generate. The form carries the required "input"
// field, zero or more "files" and an optional "thread_id".
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := parseForm(r, h.maxBodySize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body too large (max %d bytes)", h.maxBodySize))
			return
		}
		transport.WriteError(w, http.StatusUnprocessableEntity, "invalid form: "+err.Error())
		return
	}

	inputs, ok := r.PostForm["input"]
	if !ok || len(inputs) == 0 {
		transport.WriteError(w, http.StatusUnprocessableEntity, "input is required")
		return
	}

	threadID := strings.TrimSpace(r.PostForm.Get("thread_id"))
	if threadID == "" {
		threadID = strings.TrimSpace(r.Header.Get(ThreadIDHeader))
	}

	var atts []conversation.Attachment
	if r.MultipartForm != nil {
		var err error
		atts, err = attachments(encodeUploads(r.MultipartForm.File["files"]))
		if err != nil {
			h.logger.Warn("upload rejected", "error", err.Error())
			transport.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	debug.Log(debug.Transport, "generate request",
		"thread_id", threadID, "input_len", len(inputs[0]), "files", len(atts))

	res, err := h.runner.Run(r.Context(), threadID, inputs[0], atts)
	if err != nil {
		h.logger.Error("generate failed", "thread_id", threadID, "error", err.Error())
		transport.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set(ThreadIDHeader, res.ThreadID)
	transport.WriteJSON(w, http.StatusOK, GenerateResponse{
		Messages: nonNil(res.Messages),
		Files:    nonNilMap(res.Files),
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseForm accepts multipart and url-encoded bodies.
func parseForm(r *http.Request, maxMemory int64) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
