package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/analyst/pkg/checkpoint"
	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/observability"
	"github.com/rhuss/analyst/pkg/provider"
)

// Engine runs agent turns. It is safe for concurrent use; turns on the
// same thread are serialized by the checkpoint store.
type Engine struct {
	provider provider.Provider
	tools    ToolSet
	store    checkpoint.Store
	cfg      Config
}

// Result is the outcome of one turn.
type Result struct {
	// ThreadID is the thread the turn ran on.
	ThreadID string

	// Messages holds the non-empty text of each assistant message of the
	// turn, in order.
	Messages []string

	// Files merges the files produced by tools during the turn. A later
	// file replaces an earlier one with the same name.
	Files map[string]string
}

// New creates an Engine. All dependencies are required.
func New(p provider.Provider, ts ToolSet, store checkpoint.Store, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if ts == nil {
		return nil, fmt.Errorf("engine: tool set must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("engine: checkpoint store must not be nil")
	}
	return &Engine{provider: p, tools: ts, store: store, cfg: cfg}, nil
}

// Run executes one turn on a thread: it appends the input as a human
// message, drives the agent loop to completion and saves the new history.
// An empty threadID selects the configured default thread. A failed turn
// leaves the stored history untouched.
func (e *Engine) Run(ctx context.Context, threadID, input string, attachments []conversation.Attachment) (*Result, error) {
	if threadID == "" {
		threadID = e.cfg.defaultThreadID()
	}

	release, err := e.store.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	conv, version, err := e.load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	start := conv.Len()
	conv.Append(conversation.Human(input, attachments...))

	modelCalls, err := e.runLoop(ctx, conv)
	observability.AgentModelCalls.Observe(float64(modelCalls))
	if err != nil {
		observability.AgentTurnsTotal.WithLabelValues("failed").Inc()
		slog.Warn("agent turn failed", "thread_id", threadID, "error", err.Error())
		return nil, err
	}

	if err := conv.Validate(); err != nil {
		observability.AgentTurnsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("thread %q: %w", threadID, err)
	}

	if _, err := e.store.Save(ctx, threadID, version, conv.Messages); err != nil {
		observability.AgentTurnsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	observability.AgentTurnsTotal.WithLabelValues("completed").Inc()

	res, err := collect(threadID, conv.Messages[start:])
	if err != nil {
		return nil, err
	}

	slog.Debug("agent turn completed",
		"thread_id", threadID,
		"model_calls", modelCalls,
		"messages", len(res.Messages),
		"files", len(res.Files),
	)
	return res, nil
}

// History returns the stored messages of a thread.
func (e *Engine) History(ctx context.Context, threadID string) ([]conversation.Message, error) {
	if threadID == "" {
		threadID = e.cfg.defaultThreadID()
	}
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return cp.Messages, nil
}

func (e *Engine) load(ctx context.Context, threadID string) (*conversation.Conversation, int, error) {
	cp, err := e.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return conversation.New(threadID), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp.Conversation(), cp.Version, nil
}

// collect builds the turn result from the messages produced by the turn.
func collect(threadID string, produced []conversation.Message) (*Result, error) {
	res := &Result{
		ThreadID: threadID,
		Messages: []string{},
		Files:    map[string]string{},
	}
	for _, m := range produced {
		switch m.Kind {
		case conversation.KindAssistant:
			if m.Text != "" {
				res.Messages = append(res.Messages, m.Text)
			}
		case conversation.KindTool:
			files, err := m.Files()
			if err != nil {
				return nil, err
			}
			for name, content := range files {
				res.Files[name] = content
			}
		case conversation.KindHuman, conversation.KindUnknown:
		}
	}
	return res, nil
}
