package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"mt5-gateway/src/models"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinEncryptionKeyLength is the shortest accepted credential secret, in bytes.
const MinEncryptionKeyLength = 32

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file, then applies the
// optional .env file next to the working directory and the process
// environment on top of it. Secrets only ever come from the environment.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Environment overrides
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	if err := env.Parse(modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	config := &Config{MConfig: modelConfig}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Defaults mirrors the values the gateway ships with.
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "mt5-gateway",
		Host:     "0.0.0.0",
		Port:     8000,
		LogLevel: "INFO",
		GrpcHost: "127.0.0.1",
		GrpcPort: 9091,
		Terminal: models.MTerminalConfig{
			BaseURL:        "http://mt5:5001",
			TimeoutSeconds: 10,
		},
		Identity: models.MIdentityConfig{
			TimeoutSeconds: 10,
		},
		Monitor: models.MMonitorConfig{
			HealthCheckIntervalSeconds: 30,
			ErrorBackoffSeconds:        60,
		},
		MarketData: models.MMarketDataConfig{
			UpdateIntervalMs:       200,
			HistoryCacheTTLSeconds: 3600,
			HistoryCacheSize:       1000,
			MaxBars:                10000,
		},
		Risk: models.MRiskConfig{
			MaxDailyLossPct:   0.05,
			MaxMarginUsagePct: 0.8,
		},
		Realtime: models.MRealtimeConfig{
			AuthTimeoutSeconds:  10,
			PingIntervalSeconds: 30,
			MaxConnections:      100,
		},
		API: models.MAPIConfig{
			RequestsPerMinute: 60,
		},
		Storage: models.MStorageConfig{
			DBType:        "none",
			RetentionDays: 30,
		},
		Events: models.MEventsConfig{
			Type: "none",
		},
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Credential vault key
	if len(c.Security.EncryptionKey) < MinEncryptionKeyLength {
		return fmt.Errorf("MT5_ENCRYPTION_KEY must be at least %d bytes long", MinEncryptionKeyLength)
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid gRPC port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Peers
	if _, err := url.ParseRequestURI(c.Terminal.BaseURL); err != nil {
		return fmt.Errorf("terminal base_url is invalid: %w", err)
	}
	if c.Terminal.TimeoutSeconds <= 0 {
		return fmt.Errorf("terminal timeout must be greater than 0")
	}
	if c.Identity.URL == "" {
		return fmt.Errorf("identity url (SUPABASE_URL) cannot be empty")
	}
	if c.Identity.TimeoutSeconds <= 0 {
		return fmt.Errorf("identity timeout must be greater than 0")
	}

	// Loops
	if c.Monitor.HealthCheckIntervalSeconds <= 0 {
		return fmt.Errorf("health check interval must be greater than 0")
	}
	if c.Monitor.ErrorBackoffSeconds < c.Monitor.HealthCheckIntervalSeconds {
		return fmt.Errorf("error backoff must not be shorter than the health check interval")
	}
	if c.MarketData.UpdateIntervalMs <= 0 {
		return fmt.Errorf("market data update interval must be greater than 0")
	}
	if c.MarketData.MaxBars < 1 || c.MarketData.MaxBars > 10000 {
		return fmt.Errorf("max bars must be between 1 and 10000")
	}

	// Risk thresholds
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 1 {
		return fmt.Errorf("max_daily_loss_pct must be in (0, 1]")
	}
	if c.Risk.MaxMarginUsagePct <= 0 || c.Risk.MaxMarginUsagePct > 1 {
		return fmt.Errorf("max_margin_usage_pct must be in (0, 1]")
	}

	// Realtime
	if c.Realtime.AuthTimeoutSeconds <= 0 {
		return fmt.Errorf("realtime auth timeout must be greater than 0")
	}
	if c.Realtime.PingIntervalSeconds <= 0 {
		return fmt.Errorf("realtime ping interval must be greater than 0")
	}

	// Storage
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}
	switch c.Storage.DBType {
	case "", "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Events
	switch c.Events.Type {
	case "", "none":
	case "nats", "kafka":
		if len(c.Events.Servers) == 0 {
			return fmt.Errorf("events servers list cannot be empty for %s", c.Events.Type)
		}
		if c.Events.Type == "kafka" && c.Events.Topic == "" {
			return fmt.Errorf("events topic cannot be empty for kafka")
		}
	default:
		return fmt.Errorf("unsupported events type: %s", c.Events.Type)
	}

	return nil
}

// -----------------------------------------------------------------------------
// Typed accessors

func (c *Config) TerminalTimeout() time.Duration {
	return time.Duration(c.Terminal.TimeoutSeconds) * time.Second
}

func (c *Config) IdentityTimeout() time.Duration {
	return time.Duration(c.Identity.TimeoutSeconds) * time.Second
}

func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.Monitor.HealthCheckIntervalSeconds) * time.Second
}

func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Monitor.ErrorBackoffSeconds) * time.Second
}

func (c *Config) MarketDataInterval() time.Duration {
	return time.Duration(c.MarketData.UpdateIntervalMs) * time.Millisecond
}

func (c *Config) HistoryCacheTTL() time.Duration {
	return time.Duration(c.MarketData.HistoryCacheTTLSeconds) * time.Second
}

func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.Realtime.AuthTimeoutSeconds) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Realtime.PingIntervalSeconds) * time.Second
}
