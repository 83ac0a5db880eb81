// Package server exposes the analysis engine over HTTP: the analyze
// endpoint, cache operations, health, and prometheus metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/coach/analysis"
	"github.com/c360studio/coach/cache"
	"github.com/c360studio/coach/rubric"
)

// Server is the coach HTTP API server.
type Server struct {
	addr     string
	router   *chi.Mux
	analyzer *analysis.Analyzer
	store    cache.Store
	rubrics  *rubric.Registry
	logger   *slog.Logger

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the API server.
func New(addr string, analyzer *analysis.Analyzer, store cache.Store, rubrics *rubric.Registry, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		analyzer: analyzer,
		store:    store,
		rubrics:  rubrics,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(10 * time.Minute))

	router.Get("/healthz", s.health)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyze)
		r.Get("/rubrics", s.listRubrics)
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.cacheStats)
			r.Post("/reset", s.cacheReset)
			r.Post("/invalidate", s.cacheInvalidate)
		})
	})

	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
