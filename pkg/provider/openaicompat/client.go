// Package openaicompat implements provider.Provider for OpenAI-compatible Chat
// Completions backends (OpenAI, vLLM, LiteLLM, Ollama) using the official
// openai-go SDK.
package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/rhuss/analyst/pkg/debug"
	"github.com/rhuss/analyst/pkg/provider"
)

var _ provider.Provider = (*Provider)(nil)

// Config holds connection settings for an OpenAI-compatible backend.
type Config struct {
	// BaseURL is the API root including the version segment,
	// e.g. "https://api.openai.com/v1". Empty uses the SDK default.
	BaseURL string

	// APIKey is sent as a bearer token. Optional for local backends.
	APIKey string

	// MaxTokens is used when the request does not set one. Zero leaves
	// the backend default in place.
	MaxTokens int

	// Timeout is the HTTP client timeout. Zero means no timeout.
	Timeout time.Duration
}

// Provider sends Chat Completions requests through openai-go.
type Provider struct {
	client    openai.Client
	maxTokens int
}

// New creates a Provider. Retries are disabled: a failed call fails the turn.
func New(cfg Config) (*Provider, error) {
	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Provider{
		client:    openai.NewClient(opts...),
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Name returns "openai".
func (p *Provider) Name() string {
	return "openai"
}

// Complete performs a non-streaming chat completion.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	params, err := translateRequest(req, p.maxTokens)
	if err != nil {
		return nil, err
	}

	debug.Log(debug.Providers, "chat completion request",
		"model", params.Model, "messages", len(params.Messages), "tools", len(params.Tools))

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	debug.Log(debug.Providers, "chat completion response",
		"id", completion.ID, "choices", len(completion.Choices),
		"prompt_tokens", completion.Usage.PromptTokens, "completion_tokens", completion.Usage.CompletionTokens)

	return translateResponse(completion)
}

// Close is a no-op; the SDK holds no long-lived resources.
func (p *Provider) Close() error {
	return nil
}
