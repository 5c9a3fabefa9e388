// Command sandbox-server runs the python sandbox used by the analyst's
// interpreter tool.
//
// Configuration:
//
//	SANDBOX_PORT            - Listen port (default: 8080)
//	SANDBOX_INTERPRETER     - Interpreter binary (default: python3)
//	SANDBOX_MAX_CONCURRENT  - Max concurrent executions (default: 3)
//	SANDBOX_INSTALL_MISSING - Install requested libraries that are missing (default: false)
//	SANDBOX_PYTHON_INDEX    - Python package index URL (default: https://pypi.org/simple/)
//	SANDBOX_OUTPUT_DIR      - Output directory name within the work dir (default: output)
package main

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	transporthttp "github.com/rhuss/analyst/pkg/transport/http"
	"github.com/rhuss/analyst/pkg/tools/sandbox/server"
)

func main() {
	s := server.New(server.Config{
		Interpreter:    os.Getenv("SANDBOX_INTERPRETER"),
		MaxConcurrent:  envOrInt("SANDBOX_MAX_CONCURRENT", 0),
		InstallMissing: os.Getenv("SANDBOX_INSTALL_MISSING") == "true",
		PackageIndex:   os.Getenv("SANDBOX_PYTHON_INDEX"),
		OutputDirName:  os.Getenv("SANDBOX_OUTPUT_DIR"),
	})

	addr := net.JoinHostPort("", envOr("SANDBOX_PORT", "8080"))
	slog.Info("sandbox server starting", "addr", addr)

	srv := transporthttp.NewServer(s.Handler(),
		transporthttp.WithAddr(addr),
		transporthttp.WithTimeouts(30*time.Second, 10*time.Minute),
	)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}
