package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_OWNER_ID", "42")
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validConfig() Config {
	return Config{
		Telegram:  TelegramConfig{Token: "123:abc", OwnerID: 42},
		Database:  DatabaseConfig{Driver: "sqlite3", DSN: "data/studybot.db"},
		Scheduler: SchedulerConfig{Enabled: true, StartHour: 8, EndHour: 22, Interval: time.Hour, Timezone: "UTC"},
		SRS:       SRSConfig{DueSoonWindow: 2 * time.Hour, MaxInterval: 90 * 24 * time.Hour, RetentionScale: 1, DefaultQuestions: 10},
		API:       APIConfig{Addr: ":8080"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.OwnerID)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "data/studybot.db", cfg.Database.DSN)
	assert.Equal(t, "catalog", cfg.Catalog.Dir)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 8, cfg.Scheduler.StartHour)
	assert.Equal(t, 22, cfg.Scheduler.EndHour)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 2*time.Hour, cfg.SRS.DueSoonWindow)
	assert.Equal(t, 90*24*time.Hour, cfg.SRS.MaxInterval)
	assert.Equal(t, 1.0, cfg.SRS.RetentionScale)
	assert.Equal(t, 10, cfg.SRS.DefaultQuestions)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://u:p@localhost:5432/study?sslmode=disable")
	t.Setenv("SRS_RETENTION_SCALE", "1.5")
	t.Setenv("NOTIFICATION_START_HOUR", "6")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 1.5, cfg.SRS.RetentionScale)
	assert.Equal(t, 6, cfg.Scheduler.StartHour)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_YAML(t *testing.T) {
	validEnv(t)
	t.Setenv("CONFIG_PATH", writeYAML(t, `
telegram:
  token: "yaml-token"
  owner_id: 7
catalog:
  dir: "/srv/catalog"
srs:
  due_soon_window: "30m"
  default_questions: 20
api:
  enabled: true
  addr: "127.0.0.1:9090"
`))

	cfg, err := Load()
	require.NoError(t, err)

	// env wins over yaml
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "/srv/catalog", cfg.Catalog.Dir)
	assert.Equal(t, 30*time.Minute, cfg.SRS.DueSoonWindow)
	assert.Equal(t, 20, cfg.SRS.DefaultQuestions)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.API.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	validEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MissingToken(t *testing.T) {
	validEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no owner", func(c *Config) { c.Telegram.OwnerID = 0 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"start hour out of range", func(c *Config) { c.Scheduler.StartHour = 24 }, true},
		{"negative end hour", func(c *Config) { c.Scheduler.EndHour = -1 }, true},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }, true},
		{"zero interval while disabled", func(c *Config) { c.Scheduler.Enabled = false; c.Scheduler.Interval = 0 }, false},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, true},
		{"negative due soon window", func(c *Config) { c.SRS.DueSoonWindow = -time.Minute }, true},
		{"zero max interval", func(c *Config) { c.SRS.MaxInterval = 0 }, true},
		{"negative default questions", func(c *Config) { c.SRS.DefaultQuestions = -1 }, true},
		{"exam date", func(c *Config) { c.SRS.ExamDate = "2025-03-01" }, false},
		{"bad exam date", func(c *Config) { c.SRS.ExamDate = "March 1st" }, true},
		{"api without addr", func(c *Config) { c.API.Enabled = true; c.API.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
