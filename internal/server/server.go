package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/sidesnap/internal/api/http"
	"github.com/GriffinCanCode/sidesnap/internal/api/middleware"
	"github.com/GriffinCanCode/sidesnap/internal/domain/snapshot"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/config"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/storage"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/tracing"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	store   *storage.SQLiteStore
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance with a logger built from cfg
func NewServer(cfg *config.Config) (*Server, error) {
	return New(cfg, logging.For(cfg.Logging.Level, cfg.Logging.Development))
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Initializing sidesnap server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("db", cfg.Storage.Path),
		zap.Int64("max_upload", cfg.Upload.MaxBytes),
	)

	// Metrics first, the store breaker reports into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("sidesnap", logger.Named("trace").Logger)

	store, err := storage.Open(cfg.Storage.Path, storage.Options{
		BusyTimeout: time.Duration(cfg.Storage.BusyTimeoutMS) * time.Millisecond,
		Logger:      logger.Named("storage").Logger,
	})
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return nil, multierr.Append(fmt.Errorf("failed to open snapshot store: %w", err), tracer.Close(closeCtx))
	}

	guarded := storage.NewGuarded(store, storage.GuardSettings{
		MaxFailures: cfg.Breaker.MaxFailures,
		Settings: resilience.Settings{
			Cooldown: time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
		},
		Logger:  logger.Logger,
		Metrics: metrics,
	})

	svc := snapshot.NewService(guarded, logger.Named("snapshot").Logger).
		WithMetrics(metrics).
		WithMaxUpload(cfg.Upload.MaxBytes)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger.Logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.Use(middleware.RequestLogger(logger.Named("http").Logger))
	router.Use(middleware.CORS(cfg.CORS.Origins...))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			Skip:              []string{"/health", "/metrics"},
		}))
	}

	handlers := apihttp.NewHandlers(svc, logger.Logger,
		apihttp.WithHealthCheck(store),
		apihttp.WithMetrics(metrics),
		apihttp.WithMaxUpload(cfg.Upload.MaxBytes),
	)
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:   store,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until Shutdown
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownTimeout returns the configured grace period for Shutdown
func (s *Server) ShutdownTimeout() time.Duration {
	return time.Duration(s.config.Server.ShutdownTimeoutSeconds) * time.Second
}

// Shutdown stops accepting requests, waits for in-flight ones, then flushes
// spans and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if e := s.http.Shutdown(ctx); e != nil {
		err = multierr.Append(err, fmt.Errorf("failed to stop http server: %w", e))
	}
	if e := s.tracer.Close(ctx); e != nil {
		err = multierr.Append(err, fmt.Errorf("failed to flush spans: %w", e))
	}
	if e := s.store.Close(); e != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close store: %w", e))
	} else {
		s.logger.Info("Closed snapshot store")
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return err
}
