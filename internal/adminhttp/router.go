package adminhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtftp/rtftpd/internal/logger"
	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/internal/session"
	"github.com/rtftp/rtftpd/pkg/metrics"
)

// Deps collects everything the admin surface reports on. Every field is
// optional; a nil field degrades its corresponding endpoint rather than
// panicking.
type Deps struct {
	Sessions *session.Registry
	Configs  *nbdconfig.Store
	Ready    ReadyFunc
}

// NewRouter builds the admin HTTP surface:
//
//   - GET /healthz      - readiness probe (listener bound + initial config scan done)
//   - GET /healthz/live - liveness probe (process is up)
//   - GET /metrics      - Prometheus exposition, if metrics were initialized
//   - GET /sessions     - JSON snapshot of every guest session
//   - GET /configs      - JSON snapshot of every loaded *.nbd mapping
//   - GET /configs/schema - JSON Schema for the *.nbd file format
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	health := newHealthHandler(deps.Ready)
	r.Get("/healthz", health.Readiness)
	r.Get("/healthz/live", health.Liveness)

	if metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics collection is disabled\n"))
		})
	}

	sessions := newSessionsHandler(deps.Sessions)
	r.Get("/sessions", sessions.List)

	configs := newConfigHandler(deps.Configs)
	r.Get("/configs", configs.List)
	r.Get("/configs/schema", configs.Schema)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/healthz", http.StatusTemporaryRedirect)
	})

	return r
}

// isHealthPath reports whether path is a probe endpoint, so requestLogger
// can log them at DEBUG instead of INFO.
func isHealthPath(path string) bool {
	return path == "/healthz" || path == "/healthz/live"
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		args := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("admin request completed", args...)
		} else {
			logger.Info("admin request completed", args...)
		}
	})
}
