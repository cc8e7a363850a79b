package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// defaultVaultSecret is only acceptable outside production
const defaultVaultSecret = "development-only-vault-secret-change-me"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Browser   BrowserConfig
	Vault     VaultConfig
	Session   SessionConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsProduction reports whether the service runs in the production environment
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	SQLitePath      string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	// AutoMigrate applies the embedded migrations (postgres) or gorm
	// AutoMigrate (sqlite) at server startup
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings. Redis backs the per-key
// automation lock when several server instances share one database.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds settings for validating tokens issued by the platform's
// identity service.
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	RateLimit        float64 // requests per second per restaurant or client; 0 disables
	RateBurst        int
	HSTS             bool
}

// BrowserConfig holds chromedp settings
type BrowserConfig struct {
	RemoteURL    string // DevTools websocket of a shared headless browser; headed logins always launch locally
	ExecPath     string
	NoSandbox    bool
	DisableGPU   bool
	WindowWidth  int
	WindowHeight int
	UserAgent    string
}

// VaultConfig holds credential encryption settings
type VaultConfig struct {
	Secret string
}

// SessionConfig holds session lifecycle budgets
type SessionConfig struct {
	LoginWait    time.Duration // how long initSession waits for a human to finish logging in
	PollInterval time.Duration
	TestTimeout  time.Duration
	ProbeTimeout time.Duration // testCredentials budget
	MaxAgeDays   int           // used by the scheduled janitor
}

// SyncConfig holds sync orchestration settings
type SyncConfig struct {
	Concurrency             int
	Timeout                 time.Duration
	RetryMaxAttempts        int
	RetryNavigationAttempts int
	RetryInitialInterval    time.Duration
	RetryMaxInterval        time.Duration
	ActionsPerSecond        float64 // portal interaction throttle per driver
}

// SchedulerConfig holds cron job settings
type SchedulerConfig struct {
	Enabled      bool
	CleanupCron  string
	AutoSyncCron string // empty disables scheduled sync
	JobTimeout   time.Duration
}

// StorageConfig holds S3-compatible settings for failure screenshots
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	UseSSL       bool
	Prefix       string

	// PresignExpiration is how long artifact download links stay valid
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing
	MetricsEnabled    bool    // Whether to export sync metrics
	LogsEnabled       bool    // Whether to bridge zap logs to the collector
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DELIVERY_ prefix (e.g., DELIVERY_VAULT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DELIVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			RateLimit:        v.GetFloat64("http.rate_limit"),
			RateBurst:        v.GetInt("http.rate_burst"),
			HSTS:             v.GetBool("http.hsts"),
		},
		Browser: BrowserConfig{
			RemoteURL:    v.GetString("browser.remote_url"),
			ExecPath:     v.GetString("browser.exec_path"),
			NoSandbox:    v.GetBool("browser.no_sandbox"),
			DisableGPU:   v.GetBool("browser.disable_gpu"),
			WindowWidth:  v.GetInt("browser.window_width"),
			WindowHeight: v.GetInt("browser.window_height"),
			UserAgent:    v.GetString("browser.user_agent"),
		},
		Vault: VaultConfig{
			Secret: v.GetString("vault.secret"),
		},
		Session: SessionConfig{
			LoginWait:    v.GetDuration("session.login_wait"),
			PollInterval: v.GetDuration("session.poll_interval"),
			TestTimeout:  v.GetDuration("session.test_timeout"),
			ProbeTimeout: v.GetDuration("session.probe_timeout"),
			MaxAgeDays:   v.GetInt("session.max_age_days"),
		},
		Sync: SyncConfig{
			Concurrency:             v.GetInt("sync.concurrency"),
			Timeout:                 v.GetDuration("sync.timeout"),
			RetryMaxAttempts:        v.GetInt("sync.retry_max_attempts"),
			RetryNavigationAttempts: v.GetInt("sync.retry_navigation_attempts"),
			RetryInitialInterval:    v.GetDuration("sync.retry_initial_interval"),
			RetryMaxInterval:        v.GetDuration("sync.retry_max_interval"),
			ActionsPerSecond:        v.GetFloat64("sync.actions_per_second"),
		},
		Scheduler: SchedulerConfig{
			Enabled:      v.GetBool("scheduler.enabled"),
			CleanupCron:  v.GetString("scheduler.cleanup_cron"),
			AutoSyncCron: v.GetString("scheduler.auto_sync_cron"),
			JobTimeout:   v.GetDuration("scheduler.job_timeout"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			Prefix:            v.GetString("storage.prefix"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "delivery-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "delivery.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "delivery"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "restaurant-platform"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// initSession holds the request open while a human logs in
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 6 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		cfg.HTTP.RateBurst = int(cfg.HTTP.RateLimit) + 1
	}
	// CORS origins are not defaulted; empty means no cross-origin access.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Restaurant-ID"}
	}
	if cfg.Browser.WindowWidth == 0 {
		cfg.Browser.WindowWidth = 1280
	}
	if cfg.Browser.WindowHeight == 0 {
		cfg.Browser.WindowHeight = 900
	}
	if cfg.Vault.Secret == "" {
		cfg.Vault.Secret = defaultVaultSecret
	}
	if cfg.Session.LoginWait == 0 {
		cfg.Session.LoginWait = 5 * time.Minute
	}
	if cfg.Session.PollInterval == 0 {
		cfg.Session.PollInterval = 2 * time.Second
	}
	if cfg.Session.TestTimeout == 0 {
		cfg.Session.TestTimeout = 45 * time.Second
	}
	if cfg.Session.ProbeTimeout == 0 {
		cfg.Session.ProbeTimeout = 60 * time.Second
	}
	if cfg.Session.MaxAgeDays == 0 {
		cfg.Session.MaxAgeDays = 30
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 2
	}
	if cfg.Sync.Timeout == 0 {
		cfg.Sync.Timeout = 10 * time.Minute
	}
	if cfg.Sync.RetryMaxAttempts == 0 {
		cfg.Sync.RetryMaxAttempts = 3
	}
	if cfg.Sync.RetryNavigationAttempts == 0 {
		cfg.Sync.RetryNavigationAttempts = 2
	}
	if cfg.Sync.RetryInitialInterval == 0 {
		cfg.Sync.RetryInitialInterval = 500 * time.Millisecond
	}
	if cfg.Sync.RetryMaxInterval == 0 {
		cfg.Sync.RetryMaxInterval = 5 * time.Second
	}
	if cfg.Sync.ActionsPerSecond == 0 {
		cfg.Sync.ActionsPerSecond = 2
	}
	if cfg.Scheduler.CleanupCron == "" {
		cfg.Scheduler.CleanupCron = "0 3 * * *"
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "delivery-sync-artifacts"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "delivery-sync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if len(c.Vault.Secret) < 32 {
		return fmt.Errorf("vault.secret must be at least 32 characters")
	}
	if c.Session.PollInterval >= c.Session.LoginWait {
		return fmt.Errorf("session.poll_interval (%s) must be shorter than session.login_wait (%s)",
			c.Session.PollInterval, c.Session.LoginWait)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	if c.Sync.RetryMaxAttempts < 1 || c.Sync.RetryNavigationAttempts < 1 {
		return fmt.Errorf("sync retry attempts must be at least 1")
	}

	if c.App.IsProduction() {
		if c.Vault.Secret == defaultVaultSecret {
			return fmt.Errorf("vault.secret must be set in production")
		}
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database.driver must be postgres in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
