// Package server implements the fm3 HTTP API.
//
// # Endpoints
//
//	GET  /healthz              liveness and build version
//	POST /v1/layout            layout (and optional renderings) as JSON
//	POST /v1/render/{format}   one rendering as a raw svg, png or dot body
//
// Both POST endpoints take the same body: the graph plus pipeline options.
// Layout options not given keep their defaults.
//
//	{
//	  "graph":   {"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"from": "a", "to": "b"}]},
//	  "layout":  {"seed": 7, "repulsive_forces": "nmm"},
//	  "formats": ["svg"]
//	}
//
// Errors are returned as {"error": {"code": "...", "message": "..."}} with a
// status derived from the error code.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/fm3/pkg/pipeline"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"

	// DefaultMaxBodySize bounds request bodies (32 MiB).
	DefaultMaxBodySize = 32 << 20

	// DefaultTimeout bounds a single request, layout included.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxIterations bounds the per-level iteration budget a request
	// may ask for.
	DefaultMaxIterations = 10000

	shutdownTimeout = 10 * time.Second
)

// Config configures the HTTP API. Zero values select the defaults.
type Config struct {
	Addr        string
	MaxVertices int
	MaxEdges    int
	MaxBodySize int64
	Timeout     time.Duration
	// MaxIterations caps fixed_iterations, fixed_iterations times
	// max_iter_factor, and fine_tuning_iterations.
	MaxIterations int
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxVertices <= 0 {
		c.MaxVertices = pipeline.DefaultMaxVertices
	}
	if c.MaxEdges <= 0 {
		c.MaxEdges = pipeline.DefaultMaxEdges
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	return c
}

// =============================================================================
// Server
// =============================================================================

// Server serves layout requests through a shared pipeline runner.
type Server struct {
	runner *pipeline.Runner
	cfg    Config
	logger *log.Logger
	router chi.Router
}

// New creates a server. A nil logger discards output.
func New(runner *pipeline.Runner, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		runner: runner,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
	s.router = s.routes()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.timeout)
		r.Use(s.limitBody)
		r.Post("/layout", s.handleLayout)
		r.Post("/render/{format}", s.handleRender)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errNotFound(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: errorBody{
			Code:    "METHOD_NOT_ALLOWED",
			Message: r.Method + " not allowed on " + r.URL.Path,
		}})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
