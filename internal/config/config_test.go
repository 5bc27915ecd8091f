package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "officer", cfg.Workflow.AssigneeRole)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.False(t, cfg.Lark.Enabled)
	assert.Equal(t, 5, cfg.Notification.MaxAttempts)
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: /tmp/x.db
workflow:
  assignee_role: reviewer
lark:
  enabled: true
  app_id: cli_123
notification:
  poll_interval: 2s
`)
	t.Setenv("INCIDENT_SERVER_PORT", "9191")
	t.Setenv("LARK_APP_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "reviewer", cfg.Workflow.AssigneeRole)
	assert.Equal(t, "s3cret", cfg.Lark.AppSecret)
	assert.Equal(t, 2*time.Second, cfg.Notification.PollInterval)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("INCIDENT_OPENAI_ENABLED=true\nOPENAI_API_KEY=sk-test\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("INCIDENT_OPENAI_ENABLED")
		os.Unsetenv("OPENAI_API_KEY")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.OpenAI.Enabled)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: 8080},
			Database:     DatabaseConfig{Path: "data/incidents.db"},
			Workflow:     WorkflowConfig{AssigneeRole: "officer"},
			Notification: NotificationConfig{PollInterval: time.Second, BatchSize: 10, MaxAttempts: 3},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"server.port":                func(c *Config) { c.Server.Port = 0 },
		"database.path":              func(c *Config) { c.Database.Path = " " },
		"workflow.assignee_role":     func(c *Config) { c.Workflow.AssigneeRole = "" },
		"lark.app_id":                func(c *Config) { c.Lark.Enabled = true; c.Lark.AppSecret = "x" },
		"openai.api_key":             func(c *Config) { c.OpenAI.Enabled = true },
		"notification.poll_interval": func(c *Config) { c.Notification.PollInterval = 0 },
		"notification.max_attempts":  func(c *Config) { c.Notification.MaxAttempts = -1 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.ErrorContains(t, c.Validate(), field)
		})
	}
}
