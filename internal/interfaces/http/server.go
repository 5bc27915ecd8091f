// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/incident-intake/internal/application/service"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Metrics is the part of the collector set the server feeds
type Metrics interface {
	RequestStarted() func(method, path, status string, elapsed time.Duration)
	Handler() http.Handler
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// NotificationInbox is the per-user view of the notification outbox
type NotificationInbox interface {
	Inbox(ctx context.Context, userID string, q service.InboxQuery) (*service.InboxPage, error)
	Stats(ctx context.Context, userID string) (*entity.NotificationStats, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	incidents  service.IncidentService
	inbox      NotificationInbox
	metrics    Metrics
	health     HealthCheck
	logger     Logger
}

// ServerOption configures optional server collaborators
type ServerOption func(*Server)

// WithMetrics records request metrics and exposes GET /metrics
func WithMetrics(m Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithNotifications exposes the caller's inbox under /api/notifications
func WithNotifications(inbox NotificationInbox) ServerOption {
	return func(s *Server) {
		s.inbox = inbox
	}
}

// WithHealthCheck makes GET /health report dependency failures
func WithHealthCheck(h HealthCheck) ServerOption {
	return func(s *Server) {
		s.health = h
	}
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, incidents service.IncidentService, logger Logger, opts ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:    config,
		router:    gin.New(),
		incidents: incidents,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(s.recoveryHandler))
	if s.metrics != nil {
		s.router.Use(metricsMiddleware(s.metrics))
	}
	s.router.Use(s.loggingMiddleware())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.incidents, s.inbox, s.health, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api", actorMiddleware())
	{
		api.GET("/statuses", handlers.ListStatuses)

		api.POST("/incidents", handlers.CreateIncident)
		api.GET("/incidents", handlers.ListIncidents)
		api.GET("/incidents/:id", handlers.GetIncident)
		api.PUT("/incidents/:id", handlers.UpdateIncident)
		api.POST("/incidents/:id/status", handlers.UpdateStatus)
		api.GET("/incidents/:id/history", handlers.GetHistory)
		api.GET("/incidents/:id/history/export", handlers.ExportHistory)

		if s.inbox != nil {
			api.GET("/notifications", handlers.ListNotifications)
			api.GET("/notifications/stats", handlers.NotificationStats)
			api.POST("/notifications/read-all", handlers.MarkAllNotificationsRead)
			api.POST("/notifications/:id/read", handlers.MarkNotificationRead)
			api.DELETE("/notifications/:id", handlers.DeleteNotification)
		}
	}
}

// Start runs the server until ctx is cancelled, then shuts it down
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
