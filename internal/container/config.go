// Package container provides dependency injection and lifecycle management
// for the incident service following Clean Architecture principles.
package container

import (
	"github.com/garyjia/incident-intake/internal/config"
	"github.com/garyjia/incident-intake/internal/infrastructure/external/lark"
	"github.com/garyjia/incident-intake/internal/infrastructure/external/openai"
	"github.com/garyjia/incident-intake/internal/infrastructure/worker"
	httpapi "github.com/garyjia/incident-intake/internal/interfaces/http"
	"github.com/garyjia/incident-intake/pkg/database"
)

// The helpers below translate the file-based application config into the
// per-component settings each constructor takes.

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		BusyTimeout:     cfg.Database.BusyTimeout,
	}
}

func larkConfig(cfg *config.Config) lark.Config {
	return lark.Config{
		AppID:         cfg.Lark.AppID,
		AppSecret:     cfg.Lark.AppSecret,
		BaseURL:       cfg.Lark.BaseURL,
		RatePerSecond: cfg.Lark.RatePerSecond,
	}
}

func openAIConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	}
}

func notificationWorkerConfig(cfg *config.Config) worker.NotificationWorkerConfig {
	wc := worker.DefaultNotificationWorkerConfig()
	wc.PollInterval = cfg.Notification.PollInterval
	wc.BatchSize = cfg.Notification.BatchSize
	return wc
}

func serverConfig(cfg *config.Config) httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}
