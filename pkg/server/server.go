// Package server exposes the resolution pipeline over HTTP.
//
// Endpoints:
//
//	POST /api/geometry/process   run the pipeline on a feature batch
//	GET  /api/geometry/history   list recent processing runs
//	GET  /healthz                liveness probe
//	GET  /                       service banner
//
// Processing results are cached by a content hash of the request when a
// cache backend is configured, and every completed run is appended to the
// history store.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/geoclear/engine/pkg/cache"
	"github.com/geoclear/engine/pkg/config"
	"github.com/geoclear/engine/pkg/history"
	"github.com/geoclear/engine/pkg/pipeline"
)

// Server wires the pipeline, cache, and history store behind a chi router.
type Server struct {
	cfg      config.Server
	runner   *pipeline.Runner
	cache    cache.Cache
	keyer    cache.Keyer
	store    history.Store
	logger   *log.Logger
	cacheTTL time.Duration
	defaults config.Processing
}

// Option configures a Server.
type Option func(*Server)

// WithCache sets the result cache backend and entry TTL.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Server) {
		if c != nil {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

// WithHistory sets the run history store.
func WithHistory(st history.Store) Option {
	return func(s *Server) {
		if st != nil {
			s.store = st
		}
	}
}

// WithProcessingDefaults sets the pipeline defaults applied when a request
// omits options.
func WithProcessingDefaults(p config.Processing) Option {
	return func(s *Server) {
		s.defaults = p
	}
}

// New creates a Server. Nil collaborators fall back to a null cache, an
// in-memory history store, and the default logger.
func New(cfg config.Server, runner *pipeline.Runner, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if runner == nil {
		runner = pipeline.NewRunner(logger)
	}
	s := &Server{
		cfg:      cfg,
		runner:   runner,
		cache:    cache.NewNullCache(),
		keyer:    cache.NewDefaultKeyer(),
		store:    history.NewMemoryStore(0),
		logger:   logger,
		cacheTTL: time.Hour,
		defaults: config.Default().Processing,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/geometry", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Get("/history", s.handleHistory)
	})
	return r
}

// Run starts the listener and blocks until ctx is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
