// Package registry routes tool calls to the executor that owns the named
// tool. It records execution metrics and converts executor panics into
// error results so one misbehaving tool cannot take down a request.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rhuss/analyst/pkg/observability"
	"github.com/rhuss/analyst/pkg/provider"
	"github.com/rhuss/analyst/pkg/tools"
)

// Registry aggregates executors keyed by tool name.
type Registry struct {
	mu sync.RWMutex

	// executors in registration order.
	executors []tools.Executor

	byName map[string]tools.Executor
}

// New creates a registry with the given executors registered in order.
func New(executors ...tools.Executor) *Registry {
	r := &Registry{byName: make(map[string]tools.Executor)}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

// Register adds an executor. If two executors declare the same tool name,
// the first one registered wins and a warning is logged.
func (r *Registry) Register(e tools.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Definition().Name
	if _, exists := r.byName[name]; exists {
		slog.Warn("tool name conflict, keeping first executor", "tool", name)
		return
	}
	r.executors = append(r.executors, e)
	r.byName[name] = e

	slog.Info("registered tool", "tool", name)
}

// Definitions returns the tool declarations of all executors in
// registration order.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.executors))
	for _, e := range r.executors {
		defs = append(defs, e.Definition())
	}
	return defs
}

// CanExecute reports whether an executor handles the named tool.
func (r *Registry) CanExecute(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Execute routes the call to its executor. Unknown tools produce an error
// result rather than an error so the model can see what went wrong.
func (r *Registry) Execute(ctx context.Context, call tools.Call) (result *tools.Result, err error) {
	r.mu.RLock()
	e, ok := r.byName[call.Name]
	r.mu.RUnlock()

	if !ok {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "unknown_tool").Inc()
		return tools.ErrorResult(call.ID, "unknown tool %q", call.Name), nil
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool executor panicked", "tool", call.Name, "call_id", call.ID, "panic", rec)
			result = tools.ErrorResult(call.ID, "internal error: tool %q panicked", call.Name)
			err = nil
			observability.ToolExecutionsTotal.WithLabelValues(call.Name, "panic").Inc()
			observability.ToolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
		}
	}()

	result, err = e.Execute(ctx, call)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case result == nil:
		status = "error"
		err = fmt.Errorf("tool %q returned no result", call.Name)
	case result.IsError:
		status = "tool_error"
	}
	observability.ToolExecutionsTotal.WithLabelValues(call.Name, status).Inc()
	observability.ToolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())

	if result != nil && result.CallID == "" {
		result.CallID = call.ID
	}
	return result, err
}

// Close closes all executors, returning the last error encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, e := range r.executors {
		if err := e.Close(); err != nil {
			slog.Warn("failed to close tool executor", "tool", e.Definition().Name, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
