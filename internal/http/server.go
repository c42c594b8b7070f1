// Package http provides the API server, its middleware, and the metrics server.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	alertHTTP "github.com/allisson/notifier/internal/alert/http"
	messageHTTP "github.com/allisson/notifier/internal/message/http"
)

// Config holds the API server settings.
type Config struct {
	Host             string
	Port             int
	AdminAPIToken    string
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
	CORSEnabled      bool
	CORSAllowOrigins string
}

// Server is the API HTTP server. All /v1 routes sit behind the admin
// bearer-token middleware; /health and /ready are open.
type Server struct {
	server *http.Server
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates the API server and registers all routes.
// metricsMiddleware is optional; pass nil when metrics are disabled.
func NewServer(
	config Config,
	db *sql.DB,
	alertHandler *alertHTTP.AlertHandler,
	messageHandler *messageHTTP.MessageHandler,
	metricsMiddleware gin.HandlerFunc,
	logger *slog.Logger,
) *Server {
	s := &Server{
		db:     db,
		logger: logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))

	if corsMiddleware := createCORSMiddleware(config.CORSEnabled, config.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsMiddleware != nil {
		router.Use(metricsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(AdminAuthMiddleware(config.AdminAPIToken, logger))
	if config.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(config.RateLimitRPS, config.RateLimitBurst, logger))
	}

	alerts := v1.Group("/alerts")
	{
		alerts.GET("", alertHandler.ListHandler)
		alerts.POST("/scan", alertHandler.ScanHandler)
		alerts.GET("/count", alertHandler.CountHandler)
		alerts.POST("/mark-delivered", alertHandler.MarkDeliveredHandler)
		alerts.POST("/mark-all-delivered", alertHandler.MarkAllDeliveredHandler)
	}

	messages := v1.Group("/messages")
	{
		messages.POST("/dispatch", messageHandler.DispatchHandler)
		messages.GET("/pending-count", messageHandler.PendingCountHandler)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting api server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start api server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can serve traffic, checking the
// database connection with a short timeout.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
