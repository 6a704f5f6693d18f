package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	// Services
	queryService driving.QueryService
	indexService driving.IndexService
	runtime      *domain.RuntimeConfig

	// Infrastructure
	limiter driven.RateLimiter // optional
	checks  map[string]Pinger  // readiness dependencies, by name
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns sensible defaults.
// WriteTimeout leaves room for a full generation.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   90 * time.Second,
	}
}

// Deps are the collaborators the server routes to
type Deps struct {
	QueryService driving.QueryService
	IndexService driving.IndexService
	Runtime      *domain.RuntimeConfig
	RateLimiter  driven.RateLimiter // nil disables throttling
	Checks       map[string]Pinger  // extra readiness checks (redis, postgres)
	Logger       *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		logger:       logger,
		queryService: deps.QueryService,
		indexService: deps.IndexService,
		runtime:      deps.Runtime,
		limiter:      deps.RateLimiter,
		checks:       deps.Checks,
	}

	s.setupRoutes()

	s.handler = NewRecoveryMiddleware(logger).Handler(
		NewRequestIDMiddleware().Handler(
			NewLoggingMiddleware(logger).Handler(
				NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router))))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	rateLimit := NewRateLimitMiddleware(s.limiter, s.logger)

	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Query endpoints, throttled per client
	s.router.Handle("POST /api/v1/rag/query", rateLimit.Handler(http.HandlerFunc(s.handleQuery)))
	s.router.Handle("POST /api/v1/rag/search", rateLimit.Handler(http.HandlerFunc(s.handleSearch)))

	// Observability
	s.router.HandleFunc("GET /api/v1/rag/stats", s.handleStats)
	s.router.HandleFunc("GET /api/v1/rag/queries", s.handleQueryHistory)

	// Index lifecycle
	s.router.HandleFunc("GET /api/v1/rag/index", s.handleIndexStatus)
	s.router.HandleFunc("POST /api/v1/rag/index/warm", s.handleIndexWarm)
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
