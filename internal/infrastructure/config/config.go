package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Kafka     KafkaConfig
	S3        S3Config
	Telemetry TelemetryConfig
	Hub       HubConfig
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

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite or memory
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
	AutoMigrate     bool   // create tables on startup (sqlite only)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings for the admin API
type JWTConfig struct {
	Secret string
	Issuer string
	// TokenExpiration is the lifetime of issued admin tokens
	TokenExpiration time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// BasePath mounts the hub API under a prefix such as "/api/v1"; empty mounts at the root
	BasePath string
}

// KafkaConfig holds the Kafka transport settings
type KafkaConfig struct {
	Brokers      []string
	ClientID     string
	BatchTimeout time.Duration
	RequiredAcks int // -1 all (default), 1 leader
}

// S3Config holds the S3 file-drop transport settings
type S3Config struct {
	Region          string
	Endpoint        string // custom endpoint for MinIO and other S3 compatible stores
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// HubConfig holds the message pipeline settings
type HubConfig struct {
	Retry    RetryConfig
	Circuit  CircuitConfig
	Poller   PollerConfig
	Health   HealthConfig
	Delivery DeliveryConfig
	DLQ      DLQConfig
	// IdempotencyTTL is how long idempotency fingerprints stay cached
	IdempotencyTTL time.Duration
}

// RetryConfig holds the exponential backoff policy
type RetryConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	MaxRetries int
}

// CircuitConfig holds circuit breaker defaults
type CircuitConfig struct {
	Cooldown         time.Duration
	MaxWait          time.Duration
	FailureThreshold int
	SuccessThreshold int
}

// PollerConfig holds the retry poller settings
type PollerConfig struct {
	Enabled     bool
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	StaleAfter  time.Duration
}

// HealthConfig holds the connector health monitor settings
type HealthConfig struct {
	Enabled  bool
	Interval time.Duration
}

// DeliveryConfig holds delivery transport defaults
type DeliveryConfig struct {
	Timeout       time.Duration
	SigningHeader string
	UserAgent     string
}

// DLQConfig holds dead letter queue settings
type DLQConfig struct {
	BulkLimit    int
	MaxBulkLimit int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with HUB_ prefix (e.g., HUB_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/integration-hub")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("HUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// poller and health monitor run unless explicitly disabled
	v.SetDefault("hub.poller.enabled", true)
	v.SetDefault("hub.health.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("jwt.secret"),
			Issuer:          v.GetString("jwt.issuer"),
			TokenExpiration: v.GetDuration("jwt.token_expiration"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			BasePath:       v.GetString("http.base_path"),
		},
		Kafka: KafkaConfig{
			Brokers:      v.GetStringSlice("kafka.brokers"),
			ClientID:     v.GetString("kafka.client_id"),
			BatchTimeout: v.GetDuration("kafka.batch_timeout"),
			RequiredAcks: v.GetInt("kafka.required_acks"),
		},
		S3: S3Config{
			Region:          v.GetString("s3.region"),
			Endpoint:        v.GetString("s3.endpoint"),
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			UsePathStyle:    v.GetBool("s3.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Hub: HubConfig{
			Retry: RetryConfig{
				BaseDelay:  v.GetDuration("hub.retry.base_delay"),
				MaxDelay:   v.GetDuration("hub.retry.max_delay"),
				Multiplier: v.GetFloat64("hub.retry.multiplier"),
				MaxRetries: v.GetInt("hub.retry.max_retries"),
			},
			Circuit: CircuitConfig{
				Cooldown:         v.GetDuration("hub.circuit.cooldown"),
				MaxWait:          v.GetDuration("hub.circuit.max_wait"),
				FailureThreshold: v.GetInt("hub.circuit.failure_threshold"),
				SuccessThreshold: v.GetInt("hub.circuit.success_threshold"),
			},
			Poller: PollerConfig{
				Enabled:     v.GetBool("hub.poller.enabled"),
				Interval:    v.GetDuration("hub.poller.interval"),
				BatchSize:   v.GetInt("hub.poller.batch_size"),
				Concurrency: v.GetInt("hub.poller.concurrency"),
				StaleAfter:  v.GetDuration("hub.poller.stale_after"),
			},
			Health: HealthConfig{
				Enabled:  v.GetBool("hub.health.enabled"),
				Interval: v.GetDuration("hub.health.interval"),
			},
			Delivery: DeliveryConfig{
				Timeout:       v.GetDuration("hub.delivery.timeout"),
				SigningHeader: v.GetString("hub.delivery.signing_header"),
				UserAgent:     v.GetString("hub.delivery.user_agent"),
			},
			DLQ: DLQConfig{
				BulkLimit:    v.GetInt("hub.dlq.bulk_limit"),
				MaxBulkLimit: v.GetInt("hub.dlq.max_bulk_limit"),
			},
			IdempotencyTTL: v.GetDuration("hub.idempotency_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "integration-hub"
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
		cfg.Database.DBName = "integration_hub"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "integration-hub.db"
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
		cfg.JWT.Issuer = "integration-hub"
	}
	if cfg.JWT.TokenExpiration == 0 {
		cfg.JWT.TokenExpiration = time.Hour
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
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "integration-hub"
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.Kafka.RequiredAcks == 0 {
		cfg.Kafka.RequiredAcks = -1
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "integration-hub"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}

	hub := &cfg.Hub
	if hub.Retry.BaseDelay == 0 {
		hub.Retry.BaseDelay = time.Second
	}
	if hub.Retry.MaxDelay == 0 {
		hub.Retry.MaxDelay = 5 * time.Minute
	}
	if hub.Retry.Multiplier == 0 {
		hub.Retry.Multiplier = 2
	}
	if hub.Retry.MaxRetries == 0 {
		hub.Retry.MaxRetries = 5
	}
	if hub.Circuit.Cooldown == 0 {
		hub.Circuit.Cooldown = 30 * time.Second
	}
	if hub.Circuit.MaxWait == 0 {
		hub.Circuit.MaxWait = 24 * time.Hour
	}
	if hub.Circuit.FailureThreshold == 0 {
		hub.Circuit.FailureThreshold = 5
	}
	if hub.Circuit.SuccessThreshold == 0 {
		hub.Circuit.SuccessThreshold = 3
	}
	if hub.Poller.Interval == 0 {
		hub.Poller.Interval = time.Minute
	}
	if hub.Poller.BatchSize == 0 {
		hub.Poller.BatchSize = 100
	}
	if hub.Poller.Concurrency == 0 {
		hub.Poller.Concurrency = 4
	}
	if hub.Poller.StaleAfter == 0 {
		hub.Poller.StaleAfter = 10 * time.Minute
	}
	if hub.Health.Interval == 0 {
		hub.Health.Interval = 5 * time.Minute
	}
	if hub.Delivery.Timeout == 0 {
		hub.Delivery.Timeout = 30 * time.Second
	}
	if hub.Delivery.SigningHeader == "" {
		hub.Delivery.SigningHeader = "X-Hub-Signature"
	}
	if hub.Delivery.UserAgent == "" {
		hub.Delivery.UserAgent = "integration-hub/1.0"
	}
	if hub.DLQ.BulkLimit == 0 {
		hub.DLQ.BulkLimit = 100
	}
	if hub.DLQ.MaxBulkLimit == 0 {
		hub.DLQ.MaxBulkLimit = 1000
	}
	if hub.IdempotencyTTL == 0 {
		hub.IdempotencyTTL = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres, sqlite or memory, got %q", c.Database.Driver)
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

	hub := c.Hub
	if hub.Retry.BaseDelay < 0 || hub.Retry.MaxDelay < 0 {
		return fmt.Errorf("hub.retry delays must be positive")
	}
	if hub.Retry.MaxDelay < hub.Retry.BaseDelay {
		return fmt.Errorf("hub.retry.max_delay (%s) cannot be below hub.retry.base_delay (%s)",
			hub.Retry.MaxDelay, hub.Retry.BaseDelay)
	}
	if hub.Retry.Multiplier < 1 {
		return fmt.Errorf("hub.retry.multiplier must be at least 1, got %g", hub.Retry.Multiplier)
	}
	if hub.Retry.MaxRetries < 0 {
		return fmt.Errorf("hub.retry.max_retries cannot be negative")
	}
	if hub.Circuit.Cooldown < 0 || hub.Circuit.FailureThreshold < 0 || hub.Circuit.SuccessThreshold < 0 {
		return fmt.Errorf("hub.circuit settings cannot be negative")
	}
	if hub.Poller.Concurrency < 0 || hub.Poller.BatchSize < 0 {
		return fmt.Errorf("hub.poller settings cannot be negative")
	}
	if hub.DLQ.BulkLimit > hub.DLQ.MaxBulkLimit {
		return fmt.Errorf("hub.dlq.bulk_limit (%d) cannot exceed hub.dlq.max_bulk_limit (%d)",
			hub.DLQ.BulkLimit, hub.DLQ.MaxBulkLimit)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "memory" {
			return fmt.Errorf("database.driver=memory is not allowed in production")
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
