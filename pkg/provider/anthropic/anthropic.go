// Package anthropic implements provider.Provider against the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/analyst/pkg/debug"
	"github.com/rhuss/analyst/pkg/provider"
)

var _ provider.Provider = (*Provider)(nil)

// Config holds Anthropic connection settings.
type Config struct {
	// BaseURL defaults to https://api.anthropic.com.
	BaseURL string

	// APIKey is required.
	APIKey string

	// MaxTokens is used when the request does not set one.
	MaxTokens int

	// Timeout is the HTTP client timeout. Zero means no timeout.
	Timeout time.Duration
}

// Provider talks to the Messages API over HTTP.
type Provider struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	maxTokens int
}

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Provider{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   baseURL,
		apiKey:    apiKey,
		maxTokens: maxTokens,
	}, nil
}

// Name returns "anthropic".
func (p *Provider) Name() string {
	return "anthropic"
}

// Complete performs a blocking Messages API call.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	payload := translateRequest(req, p.maxTokens)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode anthropic request: %w", err)
	}

	debug.Log(debug.Providers, "anthropic request",
		"model", payload.Model, "messages", len(payload.Messages), "tools", len(payload.Tools))
	if debug.TraceEnabled(debug.Providers) {
		debug.Trace(debug.Providers, "anthropic request body", "body", string(body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", p.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, readAPIError(resp)
	}

	var msgResp MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	debug.Log(debug.Providers, "anthropic response",
		"id", msgResp.ID, "stop_reason", msgResp.StopReason,
		"input_tokens", msgResp.Usage.InputTokens, "output_tokens", msgResp.Usage.OutputTokens)

	return translateResponse(&msgResp), nil
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("anthropic api status %d: %w", resp.StatusCode, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &provider.Error{Provider: "anthropic", StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var apiErr ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &provider.Error{Provider: "anthropic", StatusCode: resp.StatusCode, Type: apiErr.Error.Type, Message: apiErr.Error.Message}
	}
	return &provider.Error{Provider: "anthropic", StatusCode: resp.StatusCode, Message: string(body)}
}
