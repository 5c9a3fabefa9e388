package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/analyst/pkg/debug"
	"github.com/rhuss/analyst/pkg/provider"
	"github.com/rhuss/analyst/pkg/tools"
)

var _ tools.Executor = (*Executor)(nil)

// DefaultToolName is the tool name bound to the model.
const DefaultToolName = "python_interpreter"

// DefaultLibraries are the packages assumed to be present in the sandbox.
var DefaultLibraries = []string{"matplotlib", "pandas"}

// Config holds configuration for the sandbox executor.
type Config struct {
	// URL is the static base URL of a sandbox server. Ignored when an
	// Acquirer is supplied with WithAcquirer.
	URL string

	// ToolName overrides DefaultToolName.
	ToolName string

	// Libraries overrides DefaultLibraries.
	Libraries []string

	// ExecutionTimeout is passed to the sandbox with every request.
	ExecutionTimeout time.Duration

	// HTTPTimeout bounds one HTTP exchange with the sandbox.
	HTTPTimeout time.Duration
}

// Acquirer abstracts sandbox acquisition. Implementations exist for static
// URL mode (returns a fixed URL) and SandboxClaim mode (creates CRDs).
type Acquirer interface {
	// Acquire returns a sandbox URL to use for execution.
	// The release function must be called after execution.
	Acquire(ctx context.Context) (sandboxURL string, release func(), err error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithAcquirer replaces the static URL acquirer.
func WithAcquirer(a Acquirer) Option {
	return func(e *Executor) { e.acquirer = a }
}

// WithClient replaces the HTTP client used to reach the sandbox.
func WithClient(c *Client) Option {
	return func(e *Executor) { e.client = c }
}

// Executor runs python code in the sandbox.
type Executor struct {
	acquirer  Acquirer
	client    *Client
	name      string
	libraries []string
	timeout   time.Duration
}

// New creates a sandbox executor.
func New(cfg Config, opts ...Option) (*Executor, error) {
	e := &Executor{
		name:      cfg.ToolName,
		libraries: cfg.Libraries,
		timeout:   cfg.ExecutionTimeout,
	}
	if e.name == "" {
		e.name = DefaultToolName
	}
	if e.libraries == nil {
		e.libraries = DefaultLibraries
	}
	if e.timeout <= 0 {
		e.timeout = 60 * time.Second
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.acquirer == nil {
		if cfg.URL == "" {
			return nil, errors.New("sandbox: url is required without an acquirer")
		}
		e.acquirer = &staticURLAcquirer{url: cfg.URL}
	}
	if e.client == nil {
		e.client = NewClient(cfg.HTTPTimeout)
	}
	return e, nil
}

// Definition returns the tool declaration.
func (e *Executor) Definition() provider.ToolDefinition {
	params, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Python code to execute",
			},
		},
		"required": []string{"code"},
	})

	desc := "Execute Python code in an isolated sandbox. Use it to analyze data, compute results, and create plots or files. " +
		"Files uploaded by the user are available in the working directory, and files written there are returned to the user."
	if len(e.libraries) > 0 {
		desc += " Installed libraries: " + strings.Join(e.libraries, ", ") + "."
	}

	return provider.ToolDefinition{
		Name:        e.name,
		Description: desc,
		Parameters:  params,
	}
}

// Execute runs one call.
func (e *Executor) Execute(ctx context.Context, call tools.Call) (*tools.Result, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return tools.ErrorResult(call.ID, "invalid arguments: %v", err), nil
	}
	if args.Code == "" {
		return tools.ErrorResult(call.ID, "code is required"), nil
	}

	sandboxURL, release, err := e.acquirer.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire sandbox: %w", ctx.Err())
		}
		return tools.ErrorResult(call.ID, "failed to acquire sandbox: %v", err), nil
	}
	defer release()

	req := &ExecuteRequest{
		Code:           args.Code,
		TimeoutSeconds: int(e.timeout / time.Second),
		Libraries:      e.libraries,
	}
	if len(call.Files) > 0 {
		req.Files = make(map[string]string, len(call.Files))
		for _, f := range call.Files {
			req.Files[f.Filename] = f.Content
		}
	}

	debug.Log(debug.Sandbox, "execute",
		"call_id", call.ID, "url", sandboxURL, "files", len(req.Files),
		"code", debug.Truncate(args.Code, 200))

	resp, err := e.client.Execute(ctx, sandboxURL, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sandbox execution: %w", ctx.Err())
		}
		slog.Warn("sandbox execution failed",
			"call_id", call.ID,
			"error", err.Error(),
		)
		return tools.ErrorResult(call.ID, "sandbox execution failed: %v", err), nil
	}

	debug.Log(debug.Sandbox, "execute result",
		"call_id", call.ID, "status", resp.Status, "exit_code", resp.ExitCode,
		"duration_ms", resp.ExecutionTimeMs, "files", len(resp.ProducedFiles()))

	status := resp.Status
	if status == "" {
		status = "success"
		if resp.ExitCode != 0 {
			status = "error"
		}
	}

	output := resp.ResultFields()
	if v, ok := output["status"]; !ok || v == "" {
		output["status"] = status
	}
	if _, ok := output["exit_code"]; !ok {
		output["exit_code"] = resp.ExitCode
	}

	return &tools.Result{
		CallID:  call.ID,
		Output:  output,
		Files:   resp.ProducedFiles(),
		IsError: status != "success" || resp.ExitCode != 0,
	}, nil
}

// Close releases resources.
func (e *Executor) Close() error {
	return nil
}

// staticURLAcquirer returns a fixed sandbox URL.
type staticURLAcquirer struct {
	url string
}

func (a *staticURLAcquirer) Acquire(_ context.Context) (string, func(), error) {
	return a.url, func() {}, nil
}
