package server

import (
	"context"
	"time"

	"inboxpilot/internal/auth"
	"inboxpilot/internal/config"
	"inboxpilot/internal/handlers"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Deps are the wired application components the routes need.
type Deps struct {
	DB       *sqlx.DB
	Auth     *auth.Manager
	Threads  handlers.ThreadResolver
	Results  handlers.ResultReader
	Sync     handlers.SyncDelegate
	Runner   CapabilityRunner
	Rewriter handlers.Rewriter
}

// CapabilityRunner combines running capabilities with failure lookups.
type CapabilityRunner interface {
	handlers.CapabilityRunner
	handlers.FailureReader
}

// Server represents the application server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger zerolog.Logger
	deps   Deps
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	// Setup routes
	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.deps.DB))

	// API endpoints; every thread-scoped route requires a valid API token
	api := s.echo.Group("/api", auth.Middleware(s.deps.Auth))
	api.GET("/", handlers.RootHandler(s.config.Version))

	api.POST("/ai/process/trigger", handlers.TriggerHandler(
		s.deps.Threads, s.deps.Sync, s.deps.Runner, s.config.DefaultCapabilities, s.logger))
	api.POST("/ai/reply/rewrite", handlers.RewriteHandler(s.deps.Rewriter, s.logger))

	threads := api.Group("/threads")
	threads.GET("/:id/summary", handlers.SummaryHandler(s.deps.Threads, s.deps.Results, s.deps.Runner))
	threads.GET("/:id/priority", handlers.PriorityHandler(s.deps.Threads, s.deps.Results, s.deps.Runner))
	threads.GET("/:id/sentiment", handlers.SentimentHandler(s.deps.Threads, s.deps.Results, s.deps.Runner))
	threads.GET("/:id/reply", handlers.ReplyHandler(s.deps.Threads, s.deps.Results, s.deps.Runner))
	threads.GET("/:id/tasks", handlers.TasksHandler(s.deps.Threads, s.deps.Results, s.deps.Runner))
	threads.GET("/:id/escalation", handlers.EscalationHandler(s.deps.Threads, s.deps.Results, s.deps.Runner))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
