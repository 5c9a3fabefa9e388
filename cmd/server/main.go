// Command server runs the analyst agent behind POST /generate.
//
// Configuration is read from a YAML file (-config, ANALYST_CONFIG,
// ./config.yaml or /etc/analyst/config.yaml) with ANALYST_* environment
// overrides. A .env file in the working directory is loaded first.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/rhuss/analyst/pkg/checkpoint/memory"
	"github.com/rhuss/analyst/pkg/config"
	"github.com/rhuss/analyst/pkg/debug"
	"github.com/rhuss/analyst/pkg/engine"
	"github.com/rhuss/analyst/pkg/provider"
	"github.com/rhuss/analyst/pkg/provider/anthropic"
	"github.com/rhuss/analyst/pkg/provider/openaicompat"
	"github.com/rhuss/analyst/pkg/tools/registry"
	"github.com/rhuss/analyst/pkg/tools/sandbox"
	"github.com/rhuss/analyst/pkg/tools/sandbox/kubernetes"
	transporthttp "github.com/rhuss/analyst/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	debug.Configure(cfg.Logging.Debug)
	if cats := debug.Categories(); len(cats) > 0 {
		slog.Info("debug logging enabled", "categories", cats, "level", cfg.Logging.Level)
	}

	prov, err := newProvider(cfg.Model)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	exec, err := newSandbox(cfg.Sandbox)
	if err != nil {
		return fmt.Errorf("creating sandbox executor: %w", err)
	}
	tools := registry.New(exec)
	defer tools.Close()

	store := memory.New(cfg.Checkpoint.MaxThreads)
	defer store.Close()

	eng, err := engine.New(prov, tools, store, engine.Config{
		Model:           cfg.Model.Name,
		SystemPrompt:    cfg.Model.SystemPrompt,
		MaxTokens:       cfg.Model.MaxTokens,
		MaxTurns:        cfg.Engine.MaxTurns,
		DefaultThreadID: cfg.Engine.DefaultThreadID,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}
	router := transporthttp.NewRouter(
		transporthttp.NewHandler(eng, cfg.Server.MaxBodySize, logger),
		transporthttp.RouterConfig{MetricsPath: metricsPath, Logger: logger},
	)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	slog.Info("analyst starting",
		"addr", addr,
		"provider", prov.Name(),
		"model", cfg.Model.Name,
		"tool", exec.Definition().Name,
	)

	srv := transporthttp.NewServer(router,
		transporthttp.WithAddr(addr),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithLogger(logger),
	)
	return srv.ListenAndServe()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newProvider(cfg config.ModelConfig) (provider.Provider, error) {
	if cfg.Provider == "openai" {
		p, err := openaicompat.New(openaicompat.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	p, err := anthropic.New(anthropic.Config{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// newSandbox builds the python executor. A configured template selects
// SandboxClaim mode against the current kubeconfig; otherwise the static
// URL is used.
func newSandbox(cfg config.SandboxConfig) (*sandbox.Executor, error) {
	execCfg := sandbox.Config{
		URL:              cfg.URL,
		ToolName:         cfg.ToolName,
		Libraries:        cfg.Libraries,
		ExecutionTimeout: cfg.ExecutionTimeout,
		HTTPTimeout:      cfg.HTTPTimeout,
	}
	if cfg.Template == "" {
		return sandbox.New(execCfg)
	}

	scheme, err := kubernetes.NewScheme()
	if err != nil {
		return nil, err
	}
	restCfg, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("kubernetes config: %w", err)
	}
	c, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("kubernetes client: %w", err)
	}
	acq, err := kubernetes.NewClaimAcquirer(c, kubernetes.Config{
		Template:     cfg.Template,
		Namespace:    cfg.Namespace,
		ClaimTimeout: cfg.ClaimTimeout,
	})
	if err != nil {
		return nil, err
	}
	return sandbox.New(execCfg, sandbox.WithAcquirer(acq))
}
