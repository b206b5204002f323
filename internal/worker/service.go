// Package worker provides the HTTP service for parasim.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/parasim/internal/config"
	"github.com/thebtf/parasim/internal/engine"
	"github.com/thebtf/parasim/internal/extract"
	"github.com/thebtf/parasim/internal/watcher"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout bounds a single request, extraction and analysis included.
	DefaultHTTPTimeout = 60 * time.Second

	// ReadHeaderTimeout bounds reading request headers.
	ReadHeaderTimeout = 10 * time.Second
)

// Service is the HTTP front end for document analysis.
type Service struct {
	// Version of the worker binary
	version string

	// Configuration, swapped on settings reload
	config       atomic.Pointer[config.Config]
	settingsPath string

	// Listen port set by the caller; takes precedence over worker_port
	portOverride int

	// Domain services
	analyzer   *engine.Analyzer
	extractors *extract.Registry

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	listener  net.Listener
	limiter   *PerClientRateLimiter
	metrics   *Metrics
	startTime time.Time

	// Lifecycle
	ready atomic.Bool
	wg    sync.WaitGroup

	// Settings file watcher for hot reload
	configWatcher *watcher.Watcher
}

// Option customizes a Service.
type Option func(*Service)

// WithPort listens on port instead of worker_port. The settings file
// cannot change it on reload.
func WithPort(port int) Option {
	return func(s *Service) {
		s.portOverride = port
	}
}

// NewService creates a worker service from cfg. The HTTP server is not
// started until Start is called.
func NewService(version string, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	metrics := NewMetrics()
	svc := &Service{
		version:      version,
		settingsPath: config.SettingsPath(),
		analyzer:     engine.NewAnalyzer(metrics.MeterProvider()),
		extractors:   extract.DefaultRegistry(),
		router:       chi.NewRouter(),
		limiter:      NewPerClientRateLimiter(cfg.RateLimit, cfg.RateBurst),
		metrics:      metrics,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.config.Store(cfg)

	svc.setupMiddleware()
	svc.setupRoutes()

	return svc, nil
}

// Config returns the configuration currently in effect.
func (s *Service) Config() *config.Config {
	return s.config.Load()
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	cfg := s.Config()

	s.router.Use(RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(SecurityHeaders)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Upload page from embedded static files
	s.router.Get("/", serveIndex)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Document routes: bounded bodies, per-client limits, refused while draining
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Use(PerClientRateLimitMiddleware(s.limiter, s.metrics.RateLimited.Inc))
		r.Use(MaxBodySize(func() int64 { return s.Config().MaxBodyBytes }))
		r.Use(RequireJSONContentType)

		r.Post("/process", s.handleProcess)
		r.Post("/remove", s.handleRemove)
		r.Post("/api/process", s.handleProcess)
		r.Post("/api/remove", s.handleRemove)
	})
}

// requireReady rejects document requests before Start and during shutdown.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, r, http.StatusServiceUnavailable, "Service unavailable", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start binds the configured port, serves HTTP in the background and
// starts the settings watcher.
func (s *Service) Start() error {
	port := s.Config().WorkerPort
	if s.portOverride > 0 {
		port = s.portOverride
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener.
func (s *Service) Serve(ln net.Listener) error {
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.startWatcher()
	s.ready.Store(true)

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("backend", s.Config().Backend).
		Float64("threshold", s.Config().Threshold).
		Msg("Worker HTTP server started")

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Service) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// startWatcher watches the settings file for changes.
func (s *Service) startWatcher() {
	w, err := watcher.New(s.settingsPath, s.reloadConfig)
	if err != nil {
		log.Warn().Err(err).Str("path", s.settingsPath).Msg("Config watcher unavailable, hot reload disabled")
		return
	}
	s.configWatcher = w
	w.Start()
	log.Info().Str("path", s.settingsPath).Msg("Config file watcher started")
}

// reloadConfig re-reads the settings file. Analysis settings, the body
// limit and the log level apply to the next request; port, CORS and rate
// limits need a restart.
func (s *Service) reloadConfig() {
	cfg, err := config.Reload()
	if err != nil {
		s.metrics.Reloads.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Config reload failed, keeping previous settings")
		return
	}

	prev := s.config.Swap(cfg)
	s.metrics.Reloads.WithLabelValues("ok").Inc()

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if s.portOverride == 0 && prev != nil && prev.WorkerPort != cfg.WorkerPort {
		log.Warn().Int("port", cfg.WorkerPort).Msg("worker_port changed; restart to apply")
	}

	log.Info().
		Str("backend", cfg.Backend).
		Float64("threshold", cfg.Threshold).
		Int("workers", cfg.Workers).
		Msg("Config reloaded")
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)

	if s.configWatcher != nil {
		s.configWatcher.Stop()
	}

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
			shutdownErr = err
		}
	}

	s.wg.Wait()

	if err := s.metrics.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Meter provider shutdown error")
	}

	log.Info().Msg("Worker service shutdown complete")
	return shutdownErr
}
