package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/analyst/pkg/observability"
	"github.com/rhuss/analyst/pkg/transport"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string

	Logger *slog.Logger
}

// NewRouter builds the HTTP routes:
//
//	POST /generate   agent turn
//	GET  /healthz    liveness
//	GET  <metrics>   Prometheus scrape endpoint
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.MetricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(transport.Logging(cfg.Logger))
	r.Use(chimw.Recoverer)

	// Any origin, with credentials. The origin is echoed back since a
	// wildcard is not valid together with credentials.
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{ThreadIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	r.Get("/healthz", h.Health)
	r.Post("/generate", h.Generate)

	return r
}
