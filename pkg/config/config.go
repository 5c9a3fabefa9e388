// Package config provides unified configuration for the analyst server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ANALYST_ prefix and legacy names)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/analyst/pkg/debug"
)

// Config holds all configuration for the analyst server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Model         ModelConfig         `yaml:"model"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Engine        EngineConfig        `yaml:"engine"`
	Checkpoint    CheckpointConfig    `yaml:"checkpoint"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`          // default: "0.0.0.0"
	Port         int           `yaml:"port"`          // default: 5043
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 10m
	MaxBodySize  int64         `yaml:"max_body_size"` // bytes, default: 32 MiB
}

// ModelConfig selects and configures the model backend.
type ModelConfig struct {
	Provider     string        `yaml:"provider"`      // "anthropic" or "openai", default: "anthropic"
	BaseURL      string        `yaml:"base_url"`      // optional, provider default when empty
	APIKey       string        `yaml:"api_key"`       // required for anthropic
	APIKeyFile   string        `yaml:"api_key_file"`  // _file variant for api_key
	Name         string        `yaml:"name"`          // default: "claude-3-5-sonnet-latest"
	MaxTokens    int           `yaml:"max_tokens"`    // default: 4096
	Timeout      time.Duration `yaml:"timeout"`       // default: 5m
	SystemPrompt string        `yaml:"system_prompt"` // optional
}

// SandboxConfig configures the python execution sandbox. Exactly one of
// URL (static mode) and Template (SandboxClaim mode) must be set.
type SandboxConfig struct {
	URL              string        `yaml:"url"`
	ToolName         string        `yaml:"tool_name"`         // default: "python_interpreter"
	Libraries        []string      `yaml:"libraries"`         // default: matplotlib, pandas
	ExecutionTimeout time.Duration `yaml:"execution_timeout"` // default: 60s
	HTTPTimeout      time.Duration `yaml:"http_timeout"`      // default: 120s
	Template         string        `yaml:"template"`
	Namespace        string        `yaml:"namespace"`     // default: "default"
	ClaimTimeout     time.Duration `yaml:"claim_timeout"` // default: 30s
}

// EngineConfig holds agent loop settings.
type EngineConfig struct {
	MaxTurns        int    `yaml:"max_turns"`         // default: 25
	DefaultThreadID string `yaml:"default_thread_id"` // default: "100"
}

// CheckpointConfig holds conversation state settings.
type CheckpointConfig struct {
	MaxThreads int `yaml:"max_threads"` // 0 = unlimited, default: 10000
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error; default: info
	Format string `yaml:"format"` // text or json; default: text

	// Debug lists debug categories (providers, engine, sandbox,
	// checkpoint, transport or all), comma separated.
	Debug string `yaml:"debug"`
}

// SlogLevel returns the configured level, defaulting to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "trace":
		return debug.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5043,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			MaxBodySize:  32 << 20,
		},
		Model: ModelConfig{
			Provider:  "anthropic",
			Name:      "claude-3-5-sonnet-latest",
			MaxTokens: 4096,
			Timeout:   5 * time.Minute,
		},
		Sandbox: SandboxConfig{
			ToolName:         "python_interpreter",
			Libraries:        []string{"matplotlib", "pandas"},
			ExecutionTimeout: 60 * time.Second,
			HTTPTimeout:      120 * time.Second,
			Namespace:        "default",
			ClaimTimeout:     30 * time.Second,
		},
		Engine: EngineConfig{
			MaxTurns:        25,
			DefaultThreadID: "100",
		},
		Checkpoint: CheckpointConfig{
			MaxThreads: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
