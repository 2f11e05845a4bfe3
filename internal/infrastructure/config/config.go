package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Checkout      CheckoutConfig      `mapstructure:"checkout"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	CompletionStream  string        `mapstructure:"completion_stream"`
}

// BackendConfig points the engines at the console REST backend.
type BackendConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	BreakerMaxRequests  uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval     time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout      time.Duration `mapstructure:"breaker_timeout"`
	BreakerMinRequests  uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio float64       `mapstructure:"breaker_failure_ratio"`
}

type CheckoutConfig struct {
	CardGateway            string        `mapstructure:"card_gateway"`
	SavedInstrumentGateway string        `mapstructure:"saved_instrument_gateway"`
	DefaultPublicKey       string        `mapstructure:"default_public_key"`
	SessionTTL             time.Duration `mapstructure:"session_ttl"`
	TerminalTTL            time.Duration `mapstructure:"terminal_ttl"`
	JanitorInterval        time.Duration `mapstructure:"janitor_interval"`
}

type EngineConfig struct {
	CountdownTick time.Duration `mapstructure:"countdown_tick"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

type ObservabilityConfig struct {
	LogLevel         string  `mapstructure:"log_level"`
	JaegerEndpoint   string  `mapstructure:"jaeger_endpoint"`
	EnableMetrics    bool    `mapstructure:"enable_metrics"`
	EnableTracing    bool    `mapstructure:"enable_tracing"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
	MetricsNamespace string  `mapstructure:"metrics_namespace"`
}

// Load reads configuration from defaults, an optional config.yaml, .env files
// and CHECKOUT_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/checkout")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive"))
		}
	}
	if c.Redis.Enabled {
		if c.Redis.Port <= 0 {
			errs = append(errs, fmt.Errorf("redis.port must be positive"))
		}
		if c.Redis.LockTTL <= 0 {
			errs = append(errs, fmt.Errorf("redis.lock_ttl must be positive"))
		}
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, fmt.Errorf("backend.base_url is required"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must be positive"))
	}
	if c.Checkout.CardGateway == "" {
		errs = append(errs, fmt.Errorf("checkout.card_gateway is required"))
	}
	if c.Checkout.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("checkout.session_ttl must be positive"))
	}
	if c.Engine.CountdownTick <= 0 {
		errs = append(errs, fmt.Errorf("engine.countdown_tick must be positive"))
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.poll_interval must be positive"))
	}
	if c.Engine.RetryAttempts == 0 {
		errs = append(errs, fmt.Errorf("engine.retry_attempts must be positive"))
	}
	if c.Engine.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("engine.retry_delay must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Enabled && c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	// JWT secret length validation
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")

	// Database defaults
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "checkout")
	v.SetDefault("database.database", "checkout")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")
	v.SetDefault("redis.lock_ttl", "30s")
	v.SetDefault("redis.completion_stream", "checkout:completed")

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8000/api")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.breaker_max_requests", 5)
	v.SetDefault("backend.breaker_interval", "60s")
	v.SetDefault("backend.breaker_timeout", "30s")
	v.SetDefault("backend.breaker_min_requests", 10)
	v.SetDefault("backend.breaker_failure_ratio", 0.6)

	// Checkout defaults
	v.SetDefault("checkout.card_gateway", "Paystack")
	v.SetDefault("checkout.saved_instrument_gateway", "saved_card")
	v.SetDefault("checkout.default_public_key", "")
	v.SetDefault("checkout.session_ttl", "2h")
	v.SetDefault("checkout.terminal_ttl", "10m")
	v.SetDefault("checkout.janitor_interval", "1m")

	// Engine defaults
	v.SetDefault("engine.countdown_tick", "1s")
	v.SetDefault("engine.poll_interval", "10s")
	v.SetDefault("engine.retry_attempts", 6)
	v.SetDefault("engine.retry_delay", "5s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.metrics_namespace", "checkout")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")

	// Instance ID
	v.SetDefault("instance_id", "checkout-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MigrationURL returns the postgres:// URL golang-migrate expects.
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
