package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	switch c.Model.Provider {
	case "anthropic":
		if c.Model.APIKey == "" {
			errs = append(errs, fmt.Errorf("model.api_key (or ANTHROPIC_API_KEY) is required for provider \"anthropic\""))
		}
	case "openai":
	default:
		errs = append(errs, fmt.Errorf("model.provider must be \"anthropic\" or \"openai\", got %q", c.Model.Provider))
	}
	if c.Model.Name == "" {
		errs = append(errs, fmt.Errorf("model.name is required"))
	}

	// Exactly one sandbox mode.
	switch {
	case c.Sandbox.URL != "" && c.Sandbox.Template != "":
		errs = append(errs, fmt.Errorf("sandbox.url and sandbox.template are mutually exclusive"))
	case c.Sandbox.URL == "" && c.Sandbox.Template == "":
		errs = append(errs, fmt.Errorf("sandbox.url (or GENEZIO_PYTHON_EXECUTOR_URL) or sandbox.template is required"))
	}

	if c.Engine.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_turns must be > 0, got %d", c.Engine.MaxTurns))
	}
	if c.Checkpoint.MaxThreads < 0 {
		errs = append(errs, fmt.Errorf("checkpoint.max_threads must be >= 0, got %d", c.Checkpoint.MaxThreads))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be trace, debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
