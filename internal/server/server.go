package server

import (
	"strconv"
	"time"

	"responder/internal/audit"
	"responder/internal/auth"
	"responder/internal/commerce"
	"responder/internal/config"
	"responder/internal/handlers"
	"responder/internal/logbuffer"
	"responder/internal/metrics"
	"responder/internal/triage"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Services are the collaborators the routes are wired to
type Services struct {
	Store       triage.Store
	Pipeline    *handlers.Pipeline
	Drafter     *triage.Drafter
	Responder   *triage.Responder
	Audit       *audit.Service
	Auth        *auth.Manager
	Shopify     *commerce.ShopifyClient
	ShipStation *commerce.ShipStationClient
	Logs        *logbuffer.Buffer
}

// Server represents the application server
type Server struct {
	echo     *echo.Echo
	db       *sqlx.DB
	config   *config.Config
	logger   zerolog.Logger
	services *Services
}

// New creates a new server instance. db may be nil when running on the
// in-memory store.
func New(cfg *config.Config, db *sqlx.DB, services *Services, logger zerolog.Logger) *Server {
	return &Server{
		config:   cfg,
		db:       db,
		logger:   logger,
		services: services,
	}
}

// zerologMiddleware logs every request and records its duration. The request
// context carries the logger so handlers can report failures.
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			c.SetRequest(req.WithContext(s.logger.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			latency := time.Since(start)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.RequestDuration.
				WithLabelValues(req.Method, path, strconv.Itoa(res.Status)).
				Observe(latency.Seconds())

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", latency.Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return nil
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	s.echo.HideBanner = true

	s.setupRoutes()
}

// Handler exposes the configured router, mainly for tests
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	svc := s.services

	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health endpoints stay at root level for liveness checks
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.db))

	api := s.echo.Group("/api")
	api.GET("/", handlers.RootHandler(s.config.Version))
	api.POST("/auth/login", handlers.LoginHandler(svc.Auth))

	requireAuth := auth.Middleware(svc.Auth)

	admin := api.Group("/admin", requireAuth)
	admin.GET("/logs", handlers.LogsHandler(svc.Logs))
	admin.DELETE("/logs", handlers.ClearLogsHandler(svc.Logs))

	er := api.Group("/email-responder", requireAuth)
	er.POST("/upload", handlers.UploadHandler(svc.Pipeline, svc.Audit))
	er.POST("/group", handlers.GroupHandler(svc.Pipeline, svc.Audit))
	er.POST("/regroup", handlers.RegroupHandler(svc.Pipeline.Grouper, svc.Audit))
	er.GET("/groups", handlers.ListGroupsHandler(svc.Store))
	er.POST("/generate", handlers.GenerateHandler(svc.Drafter, svc.Audit))
	er.POST("/save-response", handlers.SaveResponseHandler(svc.Responder, svc.Audit))
	er.GET("/comments", handlers.ListCommentsHandler(svc.Responder))
	er.POST("/comments", handlers.AddCommentHandler(svc.Responder, svc.Audit))
	er.DELETE("/comments", handlers.DeleteCommentHandler(svc.Responder, svc.Audit))
	er.POST("/bulk-reply", handlers.BulkReplyHandler(svc.Responder, svc.Audit))
	er.PUT("/mail-account", handlers.MailAccountHandler(svc.Responder, svc.Audit))
	er.GET("/shopify", handlers.ShopifyOrderHandler(svc.Shopify, svc.Store, svc.Audit))
	er.GET("/shipstation", handlers.ShipStationOrderHandler(svc.ShipStation, svc.Store, svc.Audit))
	er.POST("/shipstation/tag", handlers.AddOrderTagHandler(svc.ShipStation, svc.Store, svc.Audit))
	er.DELETE("/shipstation/tag", handlers.RemoveOrderTagHandler(svc.ShipStation, svc.Store, svc.Audit))
	er.GET("/audit", handlers.AuditHandler(svc.Audit))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}
