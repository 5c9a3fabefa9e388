package provider

import "context"

// Provider abstracts a language-model backend bound with tool definitions
// supplied per request.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string

	// Complete performs one blocking inference call and returns the
	// assistant message the model produced.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
