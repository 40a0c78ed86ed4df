package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONConfigGroupedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"app": {"AppPort": "9090", "TimeZone": "Europe/Berlin", "AllowedOrigins": ["https://a.example"]},
		"database": {"Driver": "sqlite", "Name": "dev.db"},
		"notify": {"Channel": "webhook", "WebhookURL": "http://hook"}
	}`), 0o600))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	applyDefaults(&c)

	assert.Equal(t, "9090", c.AppPort)
	assert.Equal(t, []string{"https://a.example"}, c.AllowedOrigins)
	assert.Equal(t, "dev.db", c.DSN())
	assert.Equal(t, "webhook", c.NotifyChannel)
	assert.Equal(t, 5, c.ReminderWindowMin)
	assert.Equal(t, "09:00", c.DefaultReminderTime)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadJSONConfigMissingFileIsIgnored(t *testing.T) {
	var c AppConfig
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "absent.json"), &c))
}

func TestLoadJSONConfigRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app":`), 0o600))
	var c AppConfig
	assert.Error(t, loadJSONConfig(path, &c))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "7000")
	t.Setenv("ALLOWED_ORIGINS", " https://x.example , ,https://y.example")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REMINDER_INTERVAL_SEC", "30")

	c := AppConfig{AppPort: "8080"}
	applyEnvOverrides(&c)
	assert.Equal(t, "7000", c.AppPort)
	assert.Equal(t, []string{"https://x.example", "https://y.example"}, c.AllowedOrigins)
	assert.True(t, c.RedisEnabled)
	assert.Equal(t, 30, c.ReminderIntervalSec)
}

func TestMySQLDSN(t *testing.T) {
	c := AppConfig{}
	applyDefaults(&c)
	c.DBPassword = "pw"
	assert.Equal(t, "root:pw@tcp(127.0.0.1:3306)/bravesteps?charset=utf8mb4&parseTime=True&loc=UTC", c.DSN())

	c.DatabaseURI = "override"
	assert.Equal(t, "override", c.DSN())
}

func TestSetAppliesDefaults(t *testing.T) {
	Set(AppConfig{JWTSecret: "s"})
	got := Get()
	assert.Equal(t, "s", got.JWTSecret)
	assert.Equal(t, 60, got.RateLimitPerMinute)
	assert.Equal(t, 24*7, got.TokenTTLHours)
}
