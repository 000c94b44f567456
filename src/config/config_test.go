package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
name: gw
host: 127.0.0.1
port: 8080
terminal:
  base_url: http://localhost:5001
identity:
  url: https://project.supabase.co
`

func TestNewConfigAppliesDefaultsAndEnvironment(t *testing.T) {
	t.Setenv("MT5_ENCRYPTION_KEY", testKey)
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("API_KEYS", "k1,k2")

	cfg, err := NewConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "gw", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, testKey, cfg.Security.EncryptionKey)
	assert.Equal(t, "anon", cfg.Identity.AnonKey)
	assert.Equal(t, []string{"k1", "k2"}, cfg.API.APIKeys)

	assert.Equal(t, 30*time.Second, cfg.HealthCheckInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.MarketDataInterval())
	assert.Equal(t, 10*time.Second, cfg.AuthTimeout())
	assert.Equal(t, 0.05, cfg.Risk.MaxDailyLossPct)
	assert.Equal(t, 0.8, cfg.Risk.MaxMarginUsagePct)
}

func TestNewConfigRejectsShortKey(t *testing.T) {
	t.Setenv("MT5_ENCRYPTION_KEY", "too-short")

	_, err := NewConfig(writeConfig(t, minimalYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MT5_ENCRYPTION_KEY must be at least 32 bytes")
}

func TestNewConfigRejectsMissingKey(t *testing.T) {
	t.Setenv("MT5_ENCRYPTION_KEY", "")

	_, err := NewConfig(writeConfig(t, minimalYAML))
	require.Error(t, err)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Port = 80 }, wantErr: "invalid server port number"},
		{name: "bad terminal url", mutate: func(c *Config) { c.Terminal.BaseURL = "mt5" }, wantErr: "terminal base_url is invalid"},
		{name: "no identity", mutate: func(c *Config) { c.Identity.URL = "" }, wantErr: "identity url"},
		{name: "zero interval", mutate: func(c *Config) { c.Monitor.HealthCheckIntervalSeconds = 0 }, wantErr: "health check interval"},
		{name: "short backoff", mutate: func(c *Config) { c.Monitor.ErrorBackoffSeconds = 5 }, wantErr: "error backoff"},
		{name: "loss pct", mutate: func(c *Config) { c.Risk.MaxDailyLossPct = 1.5 }, wantErr: "max_daily_loss_pct"},
		{name: "margin pct", mutate: func(c *Config) { c.Risk.MaxMarginUsagePct = 0 }, wantErr: "max_margin_usage_pct"},
		{name: "auth timeout", mutate: func(c *Config) { c.Realtime.AuthTimeoutSeconds = 0 }, wantErr: "realtime auth timeout"},
		{name: "sqlite path", mutate: func(c *Config) { c.Storage.DBType = "sqlite" }, wantErr: "database path"},
		{name: "unknown db", mutate: func(c *Config) { c.Storage.DBType = "mongo" }, wantErr: "unsupported database type"},
		{name: "kafka topic", mutate: func(c *Config) {
			c.Events.Type = "kafka"
			c.Events.Servers = []string{"localhost:9092"}
		}, wantErr: "events topic"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{MConfig: Defaults()}
			cfg.Security.EncryptionKey = testKey
			cfg.Identity.URL = "https://project.supabase.co"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
