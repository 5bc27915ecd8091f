package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/incident-intake/internal/config"
	"github.com/garyjia/incident-intake/internal/container"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/repository"
	"github.com/garyjia/incident-intake/migrations"
	"github.com/garyjia/incident-intake/pkg/database"
	"github.com/garyjia/incident-intake/pkg/utils"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "incidentd",
	Short:         "Incident intake and review service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedUserCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notification worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.Logger.Level == "debug" {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			logger.Info("Starting incident service",
				zap.String("version", version),
				zap.Int("port", cfg.Server.Port))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg, logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return c.Server().Start(gctx)
			})

			err = g.Wait()
			logger.Info("Shutting down")
			if cerr := c.Close(); cerr != nil {
				logger.Error("Shutdown finished with errors", zap.Error(cerr))
			}
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, applied, err := openDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}
}

func seedUserCmd() *cobra.Command {
	var username, role, fullName, openID string

	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create a user the API can act as",
		RunE: func(cmd *cobra.Command, _ []string) error {
			username = strings.TrimSpace(username)
			role = strings.TrimSpace(role)
			if err := utils.ValidateUsername(username); err != nil {
				return err
			}
			if err := utils.ValidateRoleCode(role); err != nil {
				return err
			}

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, _, err := openDatabase(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			users := repository.NewUserRepository(db.DB, logger)
			existing, err := users.GetByUsername(ctx, username)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("user %q already exists with id %s", username, existing.ID)
			}

			user := &entity.User{
				ID:         uuid.NewString(),
				Username:   username,
				FullName:   utils.SanitizeString(fullName),
				RoleCode:   role,
				LarkOpenID: strings.TrimSpace(openID),
				CreatedAt:  time.Now().UTC(),
			}
			if user.FullName == "" {
				user.FullName = username
			}
			if err := users.Create(ctx, user); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&role, "role", "", "role code, e.g. officer (required)")
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&openID, "lark-open-id", "", "Lark open_id for notifications")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

// openDatabase opens the configured database and applies migrations
func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, int, error) {
	db, err := database.New(ctx, database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		BusyTimeout:     cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, 0, err
	}

	applied, err := database.NewMigrator(db, logger).Run(ctx, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, applied, nil
}
