package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/analyst/pkg/debug"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ANALYST_CONFIG", "ANALYST_HOST", "ANALYST_PORT", "ANALYST_PROVIDER",
		"ANALYST_MODEL", "ANALYST_BASE_URL", "ANALYST_API_KEY",
		"ANALYST_SANDBOX_URL", "ANALYST_SANDBOX_LIBRARIES", "ANALYST_MAX_TURNS",
		"ANALYST_LOG_LEVEL", "ANALYST_LOG_FORMAT", "ANALYST_DEBUG",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GENEZIO_PYTHON_EXECUTOR_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 5043 {
		t.Errorf("default listen = %s:%d, want 0.0.0.0:5043", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Model.Provider != "anthropic" {
		t.Errorf("default model.provider = %q", cfg.Model.Provider)
	}
	if cfg.Model.Name != "claude-3-5-sonnet-latest" {
		t.Errorf("default model.name = %q", cfg.Model.Name)
	}
	if strings.Join(cfg.Sandbox.Libraries, ",") != "matplotlib,pandas" {
		t.Errorf("default sandbox.libraries = %v", cfg.Sandbox.Libraries)
	}
	if cfg.Engine.MaxTurns != 25 {
		t.Errorf("default engine.max_turns = %d, want 25", cfg.Engine.MaxTurns)
	}
	if cfg.Engine.DefaultThreadID != "100" {
		t.Errorf("default engine.default_thread_id = %q, want \"100\"", cfg.Engine.DefaultThreadID)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("default metrics = %+v", cfg.Observability.Metrics)
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)

	yamlContent := `
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 60s
model:
  provider: openai
  base_url: http://localhost:8000/v1
  name: qwen
  max_tokens: 1024
  system_prompt: You are a data scientist.
sandbox:
  url: http://sandbox:8080
  libraries: [numpy, scipy]
  execution_timeout: 30s
engine:
  max_turns: 5
  default_thread_id: main
checkpoint:
  max_threads: 50
logging:
  level: debug
  format: json
observability:
  metrics:
    enabled: false
`
	cfg, err := Load(writeTemp(t, "config-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("server.read_timeout = %v", cfg.Server.ReadTimeout)
	}
	// Unset fields keep defaults.
	if cfg.Server.WriteTimeout != 10*time.Minute {
		t.Errorf("server.write_timeout = %v, want default", cfg.Server.WriteTimeout)
	}
	if cfg.Model.Provider != "openai" || cfg.Model.Name != "qwen" || cfg.Model.MaxTokens != 1024 {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Model.SystemPrompt != "You are a data scientist." {
		t.Errorf("model.system_prompt = %q", cfg.Model.SystemPrompt)
	}
	if cfg.Sandbox.URL != "http://sandbox:8080" || strings.Join(cfg.Sandbox.Libraries, ",") != "numpy,scipy" {
		t.Errorf("sandbox = %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.ExecutionTimeout != 30*time.Second {
		t.Errorf("sandbox.execution_timeout = %v", cfg.Sandbox.ExecutionTimeout)
	}
	if cfg.Engine.MaxTurns != 5 || cfg.Engine.DefaultThreadID != "main" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Checkpoint.MaxThreads != 50 {
		t.Errorf("checkpoint.max_threads = %d", cfg.Checkpoint.MaxThreads)
	}
	if cfg.Logging.SlogLevel() != slog.LevelDebug || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be disabled")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)

	path := writeTemp(t, "config-*.yaml", `
model:
  api_key: from-file
sandbox:
  url: http://from-file
`)
	t.Setenv("ANALYST_PORT", "7070")
	t.Setenv("ANALYST_MODEL", "claude-env")
	t.Setenv("ANALYST_SANDBOX_URL", "http://from-env")
	t.Setenv("ANALYST_SANDBOX_LIBRARIES", "polars, seaborn")
	t.Setenv("ANALYST_MAX_TURNS", "7")
	t.Setenv("ANALYST_LOG_LEVEL", "warn")
	t.Setenv("ANALYST_DEBUG", "sandbox,engine")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Model.Name != "claude-env" {
		t.Errorf("model.name = %q", cfg.Model.Name)
	}
	if cfg.Sandbox.URL != "http://from-env" {
		t.Errorf("sandbox.url = %q", cfg.Sandbox.URL)
	}
	if strings.Join(cfg.Sandbox.Libraries, ",") != "polars,seaborn" {
		t.Errorf("sandbox.libraries = %v", cfg.Sandbox.Libraries)
	}
	if cfg.Engine.MaxTurns != 7 {
		t.Errorf("engine.max_turns = %d", cfg.Engine.MaxTurns)
	}
	if cfg.Logging.SlogLevel() != slog.LevelWarn {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Logging.Debug != "sandbox,engine" {
		t.Errorf("logging.debug = %q", cfg.Logging.Debug)
	}
	if cfg.Model.APIKey != "from-file" {
		t.Errorf("api key = %q, want value from file", cfg.Model.APIKey)
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANALYST_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	t.Setenv("GENEZIO_PYTHON_EXECUTOR_URL", "http://genezio")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	// A missing explicit config file is an error.
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing config file")
	}

	t.Setenv("ANALYST_CONFIG", writeTemp(t, "config-*.yaml", "{}"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sandbox.URL != "http://genezio" {
		t.Errorf("sandbox.url = %q", cfg.Sandbox.URL)
	}
	if cfg.Model.APIKey != "sk-ant" {
		t.Errorf("api key = %q", cfg.Model.APIKey)
	}

	// The ANALYST_ name wins over the legacy one.
	t.Setenv("ANALYST_SANDBOX_URL", "http://analyst")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sandbox.URL != "http://analyst" {
		t.Errorf("sandbox.url = %q, want ANALYST_SANDBOX_URL", cfg.Sandbox.URL)
	}
}

func TestLoad_VendorKeyMatchesProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	t.Setenv("ANALYST_PROVIDER", "openai")
	t.Setenv("ANALYST_SANDBOX_URL", "http://sandbox")

	cfg, err := Load(writeTemp(t, "config-*.yaml", "{}"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.APIKey != "sk-oai" {
		t.Errorf("api key = %q, want OPENAI_API_KEY", cfg.Model.APIKey)
	}
}

func TestLoad_APIKeyFile(t *testing.T) {
	clearEnv(t)

	keyFile := writeTemp(t, "key-*", "  sk-from-secret\n")
	path := writeTemp(t, "config-*.yaml", `
model:
  api_key_file: `+keyFile+`
sandbox:
  url: http://sandbox
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.APIKey != "sk-from-secret" {
		t.Errorf("api key = %q", cfg.Model.APIKey)
	}
}

func TestLoad_APIKeyFileMissing(t *testing.T) {
	clearEnv(t)

	path := writeTemp(t, "config-*.yaml", `
model:
  api_key_file: /nonexistent/key
sandbox:
  url: http://sandbox
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "model.api_key_file") {
		t.Errorf("err = %v, want model.api_key_file error", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Model.APIKey = "k"
		cfg.Sandbox.URL = "http://sandbox"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "claim mode", mutate: func(c *Config) { c.Sandbox.URL = ""; c.Sandbox.Template = "python" }},
		{name: "openai without key", mutate: func(c *Config) { c.Model.Provider = "openai"; c.Model.APIKey = "" }},
		{name: "no sandbox", mutate: func(c *Config) { c.Sandbox.URL = "" }, wantErr: "sandbox.url"},
		{name: "both sandbox modes", mutate: func(c *Config) { c.Sandbox.Template = "python" }, wantErr: "mutually exclusive"},
		{name: "anthropic without key", mutate: func(c *Config) { c.Model.APIKey = "" }, wantErr: "model.api_key"},
		{name: "unknown provider", mutate: func(c *Config) { c.Model.Provider = "bard" }, wantErr: "model.provider"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "bad max turns", mutate: func(c *Config) { c.Engine.MaxTurns = 0 }, wantErr: "engine.max_turns"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "model.api_key", "sandbox.url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		t.Fatalf("writing temp file: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestSlogLevel_Trace(t *testing.T) {
	l := LoggingConfig{Level: "TRACE"}
	if l.SlogLevel() != debug.LevelTrace {
		t.Errorf("level = %v, want trace", l.SlogLevel())
	}
	cfg := Defaults()
	cfg.Logging.Level = "trace"
	cfg.Model.APIKey = "k"
	cfg.Sandbox.URL = "http://sb"
	if err := cfg.Validate(); err != nil {
		t.Errorf("trace level rejected: %v", err)
	}
}
