package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/dispatcher"
	"github.com/garyjia/incident-intake/internal/application/workflow"
	"github.com/garyjia/incident-intake/internal/config"
	"github.com/garyjia/incident-intake/internal/domain/event"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/incident-intake/internal/infrastructure/worker"
	httpapi "github.com/garyjia/incident-intake/internal/interfaces/http"
	"github.com/garyjia/incident-intake/internal/obs"
	"github.com/garyjia/incident-intake/pkg/database"
	"github.com/garyjia/incident-intake/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config  *config.Config
	logger  *zap.Logger
	metrics *obs.Metrics

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	catalog      *domainwf.Catalog

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	// Workers and transport
	workers *worker.WorkerManager
	server  *httpapi.Server

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config:  cfg,
		logger:  logger,
		metrics: obs.NewMetrics(),
	}, nil
}

// Start initializes all components and starts background workers.
// The HTTP server is built but not started; see Server.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initWorkflow(ctx); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize workflow: %w", err)
	}
	c.logger.Info("Status catalog loaded",
		zap.Int("statuses", len(c.catalog.Statuses())),
		zap.String("assignee_role", c.catalog.AssigneeRole()))

	if err := c.initServices(); err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(c.config, c.services, c.metrics, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.server = httpapi.NewServer(
		serverConfig(c.config),
		c.services.Incident,
		utils.NewKVLogger(c.logger.Named("http")),
		httpapi.WithMetrics(c.metrics),
		httpapi.WithHealthCheck(c.Ping),
		httpapi.WithNotifications(c.services.Notification),
	)

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, c.config, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr
	c.repositories = ProvideRepositories(c.db.DB, c.logger)
	return nil
}

func (c *Container) initWorkflow(ctx context.Context) error {
	catalog, err := ProvideCatalog(ctx, c.repositories, c.config)
	if err != nil {
		return err
	}
	c.catalog = catalog
	c.dispatcher = ProvideDispatcher(c.config, c.logger)
	c.engine = ProvideWorkflowEngine(&WorkflowDeps{
		Catalog:    c.catalog,
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	return nil
}

func (c *Container) initServices() error {
	analyzer, err := ProvideAnalyzer(c.config, c.logger)
	if err != nil {
		return err
	}
	c.services = ProvideServices(&ServiceDeps{
		Config:     c.config,
		Engine:     c.engine,
		Repos:      c.repositories,
		Dispatcher: c.dispatcher,
		Notifier:   ProvideNotifier(c.config, c.logger),
		Analyzer:   analyzer,
		Logger:     c.logger,
	})
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Waits for in-flight event handlers, which may still write notifications
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeDatabase() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Ping reports whether the database answers
func (c *Container) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if err := c.Ping(ctx); err != nil {
		set("database", false, err.Error())
	} else {
		set("database", true, "")
	}

	if c.workers != nil {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
		for _, ws := range c.workers.Statuses() {
			set("worker:"+ws.Name, ws.Running, ws.Detail)
		}
	} else {
		set("workers", false, "not initialized")
	}

	if c.catalog != nil {
		set("catalog", true, "")
	} else {
		set("catalog", false, "not loaded")
	}

	if c.dispatcher != nil {
		healthy, msg := eventHandlersHealth(c.dispatcher)
		set("events", healthy, msg)
	} else {
		set("events", false, "not initialized")
	}

	return status
}

// notifiedEvents are the event types whose loss would drop notifications
var notifiedEvents = []event.Type{event.TypeStatusChanged, event.TypeIncidentAssigned}

func eventHandlersHealth(d dispatcher.Dispatcher) (bool, string) {
	healthy := true
	parts := make([]string, 0, len(notifiedEvents))
	for _, t := range notifiedEvents {
		names := d.Handlers(t)
		if len(names) == 0 {
			healthy = false
			parts = append(parts, string(t)+": no handlers")
			continue
		}
		parts = append(parts, string(t)+": "+strings.Join(names, ","))
	}
	return healthy, strings.Join(parts, "; ")
}

// Server returns the HTTP server; nil before Start
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Services returns the application services; nil before Start
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns the repositories; nil before Start
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}
