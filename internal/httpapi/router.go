// Package httpapi wires the chi router: a catch-all tenant/endpoint route
// that hands off to the proxy pipeline. Health and metrics are served off a
// separate mux on a separate listener (see NewDiagnosticsMux), mirroring the
// teacher's split between its main traffic port and its :8081 health/metrics
// HTTP server.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler is satisfied by *pipeline.Pipeline; declared as an interface so
// this package's tests don't need a full pipeline wired up.
type Handler interface {
	Handle(w http.ResponseWriter, r *http.Request, tenantSlug, endpointSlug, restPath string)
}

// NewRouter builds the top-level chi.Router: structured request logging
// (grounded in the teacher's pack-mate zebrahook's zerolog HTTP middleware),
// recovery, and the catch-all proxy route.
func NewRouter(pipe Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.HandleFunc("/{tenantSlug}/{endpointSlug}", proxyHandler(pipe))
	r.HandleFunc("/{tenantSlug}/{endpointSlug}/*", proxyHandler(pipe))

	return r
}

// NewDiagnosticsMux builds the secondary health/metrics mux, served on its
// own listener (internal/config.Config.MetricsAddr) exactly as the teacher's
// cmd/server/main.go runs its :8081 health/metrics http.Server alongside the
// main traffic listener.
func NewDiagnosticsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func proxyHandler(pipe Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantSlug := chi.URLParam(r, "tenantSlug")
		endpointSlug := chi.URLParam(r, "endpointSlug")
		restPath := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		pipe.Handle(w, r, tenantSlug, endpointSlug, restPath)
	}
}

// requestLogger is a per-request zerolog middleware grounded in the
// teacher's zerolog.ConsoleWriter setup, generalized to the structured
// request-scoped logger pattern the rest of the pack uses for HTTP access
// logs (nya1-zebrahook's customZeroLog).
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		logger := log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		ctx := logger.WithContext(r.Context())

		next.ServeHTTP(ww, r.WithContext(ctx))

		zerolog.Ctx(ctx).Info().
			Int("status", ww.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
