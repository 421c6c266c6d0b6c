package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/middleware"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/ws"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	shells    *shell.Manager
	terminals *ws.Handler
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
	registry  *prometheus.Registry
}

// Option customises NewServer.
type Option func(*Server)

// WithLogger replaces the logger built from the logging config.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{config: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		s.logger = logger
	}

	codec, err := protocol.ByName(cfg.Terminal.Codec)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Initializing terminal server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("ws_path", cfg.Server.WebSocketPath),
		zap.String("codec", codec.Name()),
	)

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = monitoring.NewMetricsWith(s.registry)
	s.tracer = tracing.New("terminal", s.logger)
	s.shells = shell.NewManager(s.logger)

	corsCfg := middleware.CORSFor(cfg.Server.Origins())
	s.terminals = ws.NewHandler(s.shells, ws.Config{
		Codec: codec,
		Shell: shell.Spec{
			Shell:      cfg.Terminal.Shell,
			WorkingDir: cfg.Terminal.WorkingDir,
			Cols:       cfg.Terminal.DefaultCols,
			Rows:       cfg.Terminal.DefaultRows,
		},
		WriteTimeout: cfg.Channel.WriteTimeout,
		CheckOrigin:  corsCfg.Allowed,
		Tracer:       s.tracer,
		Spawn:        resilience.Settings{Trip: resilience.ConsecutiveFailures(5)},
	}, s.metrics, s.logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(corsCfg))

	router.GET("/", s.root)
	router.GET("/health", s.health)
	router.GET("/shells", s.listShells)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	router.GET(cfg.Server.WebSocketPath,
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.ConnectRPS,
			Burst:             cfg.Server.ConnectBurst,
		}),
		s.terminals.HandleConnection,
	)
	s.router = router

	s.logger.Info("Server initialized successfully")
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Shells returns the shell manager behind the websocket endpoint.
func (s *Server) Shells() *shell.Manager { return s.shells }

// Run starts the HTTP server and blocks until it stops. A server stopped
// by Shutdown returns nil.
func (s *Server) Run() error {
	addr := s.config.Server.Addr()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and kills every running shell.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.http != nil {
		err = multierr.Append(err, s.http.Shutdown(ctx))
	}
	err = multierr.Append(err, s.shells.Shutdown(ctx))
	s.tracer.Close()
	if err != nil {
		s.logger.Error("Shutdown incomplete", zap.Error(err))
	}
	_ = s.logger.Sync()
	return err
}
