package engine

// Config holds configuration for the engine.
type Config struct {
	// Model is passed to the provider on every call.
	Model string

	// SystemPrompt is sent as the system instruction when non-empty.
	SystemPrompt string

	// MaxTokens caps the model's output per call. Zero uses the provider
	// default.
	MaxTokens int

	// MaxTurns is the maximum number of model calls in one turn. Zero or
	// negative means use the default of 25.
	MaxTurns int

	// DefaultThreadID is used when a turn names no thread. Empty means "100".
	DefaultThreadID string
}

func (c Config) maxTurns() int {
	if c.MaxTurns <= 0 {
		return 25
	}
	return c.MaxTurns
}

func (c Config) defaultThreadID() string {
	if c.DefaultThreadID == "" {
		return "100"
	}
	return c.DefaultThreadID
}
