package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkforge/inkforge/internal/api"
	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/jobs"
	"github.com/inkforge/inkforge/internal/metrics"
	"github.com/inkforge/inkforge/internal/pipeline"
	"github.com/inkforge/inkforge/internal/ratelimit"
	"github.com/inkforge/inkforge/internal/server/endpoints"
	"github.com/inkforge/inkforge/internal/svcctx"
)

// Server is the main Inkforge HTTP server. It wires the admission
// controller, job registry, status publisher, and artifact gateway behind
// one HTTP surface and manages the job store's lifecycle.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	logger     *slog.Logger
	collector  *metrics.Collector

	store     jobs.Store
	registry  *jobs.Registry
	publisher *jobs.Publisher
	limiter   ratelimit.Limiter
	pipeline  *pipeline.Client

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	appCfg := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = appCfg.Server.Port
	}

	limiter, err := newLimiter(appCfg, cfg.Logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
		collector: metrics.NewCollector(),
		limiter:   limiter,
		pipeline: pipeline.NewClient(
			appCfg.Pipeline.BaseURL,
			appCfg.Pipeline.ResolveSecret(),
			appCfg.Pipeline.Timeout(),
			cfg.Logger,
		),
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{Metrics: s.collector}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit, s.requireInternalAuth)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // artifact streams can be large
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// newLimiter builds the admission limiter from config. Memory is the
// single-instance default; Redis shares one budget across instances.
func newLimiter(cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, error) {
	switch cfg.RateLimit.Backend {
	case "", "memory":
		return ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window()), nil
	case "redis":
		opts, err := redis.ParseURL(config.ResolveEnvVars(cfg.RateLimit.RedisURL))
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return ratelimit.NewRedisLimiter(redis.NewClient(opts), cfg.RateLimit.Limit, cfg.RateLimit.Window(), logger), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
}

// newStore builds the job store from config.
func newStore(ctx context.Context, cfg *config.Config) (jobs.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return jobs.NewMemoryStore(), nil
	case "postgres":
		return jobs.NewPostgresStore(ctx, config.ResolveEnvVars(cfg.Store.PostgresURL))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Start starts the server. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	appCfg := s.configMgr.Get()

	s.logger.Info("opening job store", "backend", appCfg.Store.Backend)
	store, err := newStore(ctx, appCfg)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open job store: %w", err)
	}
	s.store = store

	s.registry = jobs.NewRegistry(store, appCfg.Submission, s.logger)
	s.publisher = jobs.NewPublisher(s.registry)

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Registry:  s.registry,
		Publisher: s.publisher,
		Limiter:   s.limiter,
		Pipeline:  s.pipeline,
		ConfigMgr: s.configMgr,
		Metrics:   s.collector,
		Logger:    s.logger,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("job store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Registry returns the job registry. Nil until the server has started.
func (s *Server) Registry() *jobs.Registry {
	return s.registry
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store and registry aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.registry == nil || s.publisher == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// requireInternalAuth guards the pipeline's write contract with the shared
// secret. The comparison is constant-time.
func (s *Server) requireInternalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := s.configMgr.Get().Pipeline.ResolveSecret()
		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", false
	}
	return auth[len(prefix):], true
}
