package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	activityHTTP "github.com/alexfok/gate-controller/internal/activity/http"
	"github.com/alexfok/gate-controller/internal/config"
	gateHTTP "github.com/alexfok/gate-controller/internal/gate/http"
	tokenHTTP "github.com/alexfok/gate-controller/internal/token/http"
)

// Handlers groups the domain handlers mounted on the API server.
type Handlers struct {
	Token    *tokenHTTP.TokenHandler
	Gate     *gateHTTP.GateHandler
	Activity *activityHTTP.ActivityHandler
}

// Server is the admin API server.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the API server and builds its router. metricsMiddleware
// may be nil when metrics are disabled.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	handlers Handlers,
	metricsMiddleware gin.HandlerFunc,
) *Server {
	router := setupRouter(cfg, logger, handlers, metricsMiddleware)

	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// setupRouter wires middleware and routes.
func setupRouter(
	cfg *config.Config,
	logger *slog.Logger,
	handlers Handlers,
	metricsMiddleware gin.HandlerFunc,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))

	if metricsMiddleware != nil {
		router.Use(metricsMiddleware)
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.RateLimitEnabled {
		router.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, logger))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	v1 := router.Group("/v1")

	tokens := v1.Group("/tokens")
	tokens.POST("", handlers.Token.RegisterHandler)
	tokens.GET("", handlers.Token.ListHandler)
	tokens.GET("/:id", handlers.Token.GetHandler)
	tokens.PUT("/:id", handlers.Token.UpdateHandler)
	tokens.DELETE("/:id", handlers.Token.DeleteHandler)

	gate := v1.Group("/gate")
	gate.POST("/open", handlers.Gate.OpenHandler)
	gate.POST("/close", handlers.Gate.CloseHandler)
	gate.GET("/status", handlers.Gate.StatusHandler)

	v1.POST("/scan", handlers.Gate.ScanHandler)
	v1.GET("/status", handlers.Gate.SystemStatusHandler)
	v1.GET("/events", handlers.Gate.EventsHandler)

	activity := v1.Group("/activity")
	activity.GET("", handlers.Activity.ListHandler)
	activity.DELETE("", handlers.Activity.ClearHandler)
	activity.GET("/suppress", handlers.Activity.GetSuppressHandler)
	activity.PUT("/suppress", handlers.Activity.SetSuppressHandler)

	return router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
