package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level" env:"LOG_LEVEL"`
	GrpcHost   string            `yaml:"grpc_host"`
	GrpcPort   int               `yaml:"grpc_port"`
	Security   MSecurityConfig   `yaml:"security"`
	Terminal   MTerminalConfig   `yaml:"terminal"`
	Identity   MIdentityConfig   `yaml:"identity"`
	Monitor    MMonitorConfig    `yaml:"monitor"`
	MarketData MMarketDataConfig `yaml:"market_data"`
	Risk       MRiskConfig       `yaml:"risk"`
	Realtime   MRealtimeConfig   `yaml:"realtime"`
	API        MAPIConfig        `yaml:"api"`
	Storage    MStorageConfig    `yaml:"storage"`
	Events     MEventsConfig     `yaml:"events"`
}

// MSecurityConfig holds the server-wide credential encryption secret.
// It is never written back to disk.
type MSecurityConfig struct {
	EncryptionKey string `yaml:"-" env:"MT5_ENCRYPTION_KEY"`
}

type MTerminalConfig struct {
	BaseURL        string `yaml:"base_url" env:"MT5_API_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type MIdentityConfig struct {
	URL            string `yaml:"url" env:"SUPABASE_URL"`
	AnonKey        string `yaml:"-" env:"SUPABASE_ANON_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type MMonitorConfig struct {
	HealthCheckIntervalSeconds int `yaml:"health_check_interval_seconds"`
	ErrorBackoffSeconds        int `yaml:"error_backoff_seconds"`
}

type MMarketDataConfig struct {
	UpdateIntervalMs       int `yaml:"update_interval_ms"`
	HistoryCacheTTLSeconds int `yaml:"history_cache_ttl_seconds"`
	HistoryCacheSize       int `yaml:"history_cache_size"`
	MaxBars                int `yaml:"max_bars"`
}

type MRiskConfig struct {
	MaxDailyLossPct   float64 `yaml:"max_daily_loss_pct"`
	MaxMarginUsagePct float64 `yaml:"max_margin_usage_pct"`
}

type MRealtimeConfig struct {
	AuthTimeoutSeconds  int `yaml:"auth_timeout_seconds"`
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
	MaxConnections      int `yaml:"max_connections"`
}

type MAPIConfig struct {
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	APIKeys           []string `yaml:"-" env:"API_KEYS" envSeparator:","`
	CORSOrigins       []string `yaml:"cors_origins"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // none, sqlite or postgres
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string" env:"DATABASE_URL"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MEventsConfig struct {
	Type          string   `yaml:"type"` // none, nats or kafka
	Servers       []string `yaml:"servers"`
	SubjectPrefix string   `yaml:"subject_prefix"`
	Topic         string   `yaml:"topic"`
}
