package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/dispatcher"
	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/application/service"
	"github.com/garyjia/incident-intake/internal/application/workflow"
	"github.com/garyjia/incident-intake/internal/config"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
	"github.com/garyjia/incident-intake/internal/infrastructure/export"
	"github.com/garyjia/incident-intake/internal/infrastructure/external/lark"
	"github.com/garyjia/incident-intake/internal/infrastructure/external/openai"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/repository"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/incident-intake/internal/infrastructure/worker"
	"github.com/garyjia/incident-intake/internal/obs"
	"github.com/garyjia/incident-intake/migrations"
	"github.com/garyjia/incident-intake/pkg/database"
	"github.com/garyjia/incident-intake/pkg/utils"
)

// DatabaseBundle holds the opened database and its transaction manager
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database and applies embedded migrations
func ProvideDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(ctx, databaseConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := database.NewMigrator(db, logger).Run(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Incident     port.IncidentRepository
	History      port.HistoryRepository
	Catalog      port.CatalogRepository
	User         port.UserRepository
	Notification port.NotificationRepository
}

// ProvideRepositories creates every repository over one pool
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Incident:     repository.NewIncidentRepository(sqlDB, logger),
		History:      repository.NewHistoryRepository(sqlDB, logger),
		Catalog:      repository.NewCatalogRepository(sqlDB, logger),
		User:         repository.NewUserRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
	}
}

// ProvideCatalog loads and validates the status catalog
func ProvideCatalog(ctx context.Context, repos *RepositoryBundle, cfg *config.Config) (*domainwf.Catalog, error) {
	catalog, err := workflow.LoadCatalog(ctx, repos.Catalog, cfg.Workflow.AssigneeRole)
	if err != nil {
		return nil, fmt.Errorf("load status catalog: %w", err)
	}
	return catalog, nil
}

// ProvideNotifier returns the Lark messenger, or a log-only notifier when Lark is disabled
func ProvideNotifier(cfg *config.Config, logger *zap.Logger) port.Notifier {
	if !cfg.Lark.Enabled {
		logger.Info("Lark disabled, notifications are logged only")
		return lark.NewLogNotifier(logger)
	}
	lc := larkConfig(cfg)
	return lark.NewMessenger(lark.NewSDKClient(lc, logger), lc.RatePerSecond, logger)
}

// ProvideAnalyzer returns the triage analyzer, or nil when OpenAI is disabled
func ProvideAnalyzer(cfg *config.Config, logger *zap.Logger) (port.IncidentAnalyzer, error) {
	if !cfg.OpenAI.Enabled {
		return nil, nil
	}

	prompts, err := openai.DefaultPrompts()
	if cfg.OpenAI.PromptsPath != "" {
		prompts, err = openai.LoadPrompts(cfg.OpenAI.PromptsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	return openai.NewAnalyzer(openAIConfig(cfg), prompts, logger), nil
}

// ProvideDispatcher creates the in-process event dispatcher
func ProvideDispatcher(cfg *config.Config, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("events"))),
		dispatcher.WithHandlerTimeout(cfg.Workflow.EventTimeout),
	)
}

// WorkflowDeps holds the engine's collaborators
type WorkflowDeps struct {
	Catalog    *domainwf.Catalog
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    *obs.Metrics
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the transition executor
func ProvideWorkflowEngine(deps *WorkflowDeps) workflow.Engine {
	return workflow.NewEngine(
		deps.Catalog,
		deps.Repos.Incident,
		deps.Repos.History,
		deps.Repos.User,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithRecorder(deps.Metrics),
		workflow.WithLogger(utils.NewKVLogger(deps.Logger.Named("workflow"))),
	)
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Incident     service.IncidentService
	Notification service.NotificationService
}

// ServiceDeps holds what the services are built from
type ServiceDeps struct {
	Config     *config.Config
	Engine     workflow.Engine
	Repos      *RepositoryBundle
	Dispatcher dispatcher.Dispatcher
	Notifier   port.Notifier
	Analyzer   port.IncidentAnalyzer
	Logger     *zap.Logger
}

// ProvideServices creates the services and subscribes notification handlers
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	kv := utils.NewKVLogger(deps.Logger.Named("service"))

	opts := []service.IncidentOption{
		service.WithExporter(export.NewXLSXExporter(deps.Logger)),
		service.WithEvents(deps.Dispatcher),
	}
	if deps.Analyzer != nil {
		opts = append(opts, service.WithAnalyzer(deps.Analyzer, deps.Config.OpenAI.Timeout))
	}

	notifications := service.NewNotificationService(
		deps.Repos.Notification,
		deps.Repos.User,
		deps.Notifier,
		deps.Config.Notification.MaxAttempts,
		kv,
	)
	notifications.Register(deps.Dispatcher)

	return &ServiceBundle{
		Incident:     service.NewIncidentService(deps.Engine, deps.Repos.Incident, deps.Repos.User, kv, opts...),
		Notification: notifications,
	}
}

// ProvideWorkers registers the background workers
func ProvideWorkers(cfg *config.Config, services *ServiceBundle, metrics *obs.Metrics, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger.Named("worker"))
	manager.Register(worker.NewNotificationWorker(
		notificationWorkerConfig(cfg),
		services.Notification,
		metrics,
		logger.Named("notification"),
	))
	return manager
}
