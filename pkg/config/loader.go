package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ANALYST_CONFIG env, ./config.yaml, /etc/analyst/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ANALYST_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/analyst/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("ANALYST_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/analyst/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The
// legacy GENEZIO_PYTHON_EXECUTOR_URL and the vendor key variables are
// honored when the ANALYST_ equivalents are unset.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANALYST_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ANALYST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("ANALYST_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("ANALYST_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("ANALYST_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("ANALYST_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if cfg.Model.APIKey == "" && cfg.Model.APIKeyFile == "" {
		switch cfg.Model.Provider {
		case "anthropic":
			cfg.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if v := os.Getenv("GENEZIO_PYTHON_EXECUTOR_URL"); v != "" {
		cfg.Sandbox.URL = v
	}
	if v := os.Getenv("ANALYST_SANDBOX_URL"); v != "" {
		cfg.Sandbox.URL = v
	}
	if v := os.Getenv("ANALYST_SANDBOX_LIBRARIES"); v != "" {
		cfg.Sandbox.Libraries = splitList(v)
	}

	if v := os.Getenv("ANALYST_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxTurns = n
		}
	}

	if v := os.Getenv("ANALYST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ANALYST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ANALYST_DEBUG"); v != "" {
		cfg.Logging.Debug = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields when those are empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.Model.APIKeyFile != "" && cfg.Model.APIKey == "" {
		val, err := readSecretFile(cfg.Model.APIKeyFile)
		if err != nil {
			return fmt.Errorf("model.api_key_file: %w", err)
		}
		cfg.Model.APIKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
