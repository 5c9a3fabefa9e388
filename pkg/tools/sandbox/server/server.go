// Package server implements the python sandbox that the interpreter tool
// talks to. Each POST /execute runs the submitted code in a fresh working
// directory; input files are staged next to the script and every file the
// code writes to $OUTPUT_DIR is returned base64-encoded.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rhuss/analyst/pkg/tools/sandbox"
)

const (
	defaultInterpreter   = "python3"
	defaultMaxConcurrent = 3
	defaultPackageIndex  = "https://pypi.org/simple/"
	defaultOutputDir     = "output"
	defaultTimeout       = 30 * time.Second
	maxRequestBody       = 64 << 20
	scriptName           = "script.py"
)

// libraryName accepts plain distribution and module names. Anything else
// would reach the interpreter as source or uv as an option.
var libraryName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Config configures a Server.
type Config struct {
	// Interpreter runs the script file. Default "python3".
	Interpreter string

	// MaxConcurrent caps parallel executions; excess requests get 429.
	MaxConcurrent int

	// InstallMissing installs requested libraries that the interpreter
	// cannot import, using uv into a per-execution target directory.
	InstallMissing bool

	// PackageIndex is the index used for installs.
	PackageIndex string

	// OutputDirName is the directory inside the working directory whose
	// files are returned. Exposed to the code as $OUTPUT_DIR.
	OutputDirName string

	Logger *slog.Logger
}

// Server executes code on behalf of the interpreter tool.
type Server struct {
	cfg         Config
	logger      *slog.Logger
	currentLoad atomic.Int32
	startTime   time.Time

	mu         sync.Mutex
	importable map[string]bool
}

// New creates a Server, filling defaults.
func New(cfg Config) *Server {
	if cfg.Interpreter == "" {
		cfg.Interpreter = defaultInterpreter
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.PackageIndex == "" {
		cfg.PackageIndex = defaultPackageIndex
	}
	if cfg.OutputDirName == "" {
		cfg.OutputDirName = defaultOutputDir
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		logger:     logger,
		startTime:  time.Now(),
		importable: make(map[string]bool),
	}
}

// Handler returns the HTTP routes of the sandbox.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/execute", s.handleExecute)
	r.Get("/health", s.handleHealth)
	return r
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	current := s.currentLoad.Add(1)
	defer s.currentLoad.Add(-1)

	if int(current) > s.cfg.MaxConcurrent {
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.cfg.MaxConcurrent))
		return
	}

	var req sandbox.ExecuteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	resp, err := s.Execute(r.Context(), &req)
	if err != nil {
		var inputErr *InputError
		if errors.As(err, &inputErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// InputError reports a request the sandbox cannot stage.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// stagedName returns the name an upload is written under inside the work
// dir. Only the base name is kept; names that resolve to the directory
// itself or collide with the script are rejected.
func stagedName(name string) (string, error) {
	base := filepath.Base(name)
	switch base {
	case ".", "..", string(filepath.Separator), scriptName:
		return "", &InputError{Msg: fmt.Sprintf("invalid file name %q", name)}
	}
	return base, nil
}

// Execute runs one request. Failures of the code itself are reported in
// the response; a returned error means the sandbox could not run it.
func (s *Server) Execute(ctx context.Context, req *sandbox.ExecuteRequest) (*sandbox.ExecuteResponse, error) {
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s.logger.Info("execute request",
		"code", preview(req.Code, 120),
		"timeout", timeout,
		"libraries", len(req.Libraries),
		"files", len(req.Files),
	)

	for _, lib := range req.Libraries {
		if !libraryName.MatchString(lib) {
			return nil, &InputError{Msg: fmt.Sprintf("invalid library name %q", lib)}
		}
	}
	for name := range req.Files {
		if _, err := stagedName(name); err != nil {
			return nil, err
		}
	}

	workDir, err := os.MkdirTemp("", "analyst-exec-*")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputDir := filepath.Join(workDir, s.cfg.OutputDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	for name, b64 := range req.Files {
		content, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, &InputError{Msg: fmt.Sprintf("decoding file %q: %v", name, err)}
		}
		base, _ := stagedName(name)
		if err := os.WriteFile(filepath.Join(workDir, base), content, 0o644); err != nil {
			return nil, fmt.Errorf("writing file %q: %w", name, err)
		}
	}

	env := []string{"OUTPUT_DIR=" + outputDir}
	if s.cfg.InstallMissing {
		libDir := filepath.Join(workDir, ".pylibs")
		if missing := s.missingLibraries(ctx, req.Libraries); len(missing) > 0 {
			if err := s.install(ctx, libDir, missing, timeout); err != nil {
				return &sandbox.ExecuteResponse{
					Status:   "error",
					Stderr:   "package installation failed: " + err.Error(),
					ExitCode: -1,
				}, nil
			}
		}
		env = append(env, "PYTHONPATH="+libDir)
	}

	scriptPath := filepath.Join(workDir, scriptName)
	if err := os.WriteFile(scriptPath, []byte(req.Code), 0o644); err != nil {
		return nil, fmt.Errorf("writing script: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, s.cfg.Interpreter, scriptPath)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), env...)
	cmd.WaitDelay = time.Second

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start)

	status, exitCode := "success", 0
	if runErr != nil {
		status = "error"
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			exitCode = -1
			if stderr.Len() == 0 {
				fmt.Fprintf(&stderr, "execution timed out after %s", timeout)
			}
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			exitCode = -1
			if stderr.Len() == 0 {
				stderr.WriteString(runErr.Error())
			}
		}
	}

	produced := collectOutputFiles(outputDir)

	s.logger.Info("execute complete",
		"status", status,
		"exit_code", exitCode,
		"duration_ms", elapsed.Milliseconds(),
		"stdout_len", stdout.Len(),
		"files_produced", len(produced),
	)

	return &sandbox.ExecuteResponse{
		Status:          status,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExitCode:        exitCode,
		ExecutionTimeMs: elapsed.Milliseconds(),
		FilesProduced:   produced,
	}, nil
}

// missingLibraries returns the requested libraries the interpreter cannot
// import. Results are cached for the lifetime of the server.
func (s *Server) missingLibraries(ctx context.Context, libs []string) []string {
	var missing []string
	for _, lib := range libs {
		s.mu.Lock()
		ok, seen := s.importable[lib]
		s.mu.Unlock()
		if !seen {
			ok = exec.CommandContext(ctx, s.cfg.Interpreter, "-c", "import "+lib).Run() == nil
			s.mu.Lock()
			s.importable[lib] = ok
			s.mu.Unlock()
		}
		if !ok {
			missing = append(missing, lib)
		}
	}
	return missing
}

func (s *Server) install(ctx context.Context, target string, libs []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"pip", "install", "--system", "--target", target, "--index-url", s.cfg.PackageIndex}
	args = append(args, libs...)

	out, err := exec.CommandContext(ctx, "uv", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

// collectOutputFiles reads the top-level files of dir as base64.
func collectOutputFiles(dir string) map[string]string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		files[e.Name()] = base64.StdEncoding.EncodeToString(content)
	}
	if len(files) == 0 {
		return nil
	}
	return files
}

type healthResponse struct {
	Status      string `json:"status"`
	Interpreter string `json:"interpreter"`
	Capacity    int    `json:"capacity"`
	CurrentLoad int    `json:"current_load"`
	UptimeSecs  int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:      "healthy",
		Interpreter: s.cfg.Interpreter,
		Capacity:    s.cfg.MaxConcurrent,
		CurrentLoad: int(s.currentLoad.Load()),
		UptimeSecs:  int64(time.Since(s.startTime).Seconds()),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
