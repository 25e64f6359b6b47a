package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Publisher     PublisherConfig     `mapstructure:"publisher"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
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
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type GatewayConfig struct {
	Default                 string        `mapstructure:"default"`
	ChargeTimeout           time.Duration `mapstructure:"charge_timeout"`
	WebhookSecret           string        `mapstructure:"webhook_secret"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

type PublisherConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	AlertAttempts int           `mapstructure:"alert_attempts"`
	Stream        string        `mapstructure:"stream"`
}

type WorkerConfig struct {
	BatchSize      int64         `mapstructure:"batch_size"`
	BlockDuration  time.Duration `mapstructure:"block_duration"`
	ConsumerGroup  string        `mapstructure:"consumer_group"`
	ReconcileDelay time.Duration `mapstructure:"reconcile_delay"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PAYCORE")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paycore")

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
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Gateway.ChargeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("gateway.charge_timeout must be positive"))
	}
	if c.Publisher.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("publisher.batch_size must be positive"))
	}
	if c.Publisher.InitialDelay <= 0 || c.Publisher.MaxDelay < c.Publisher.InitialDelay {
		errs = append(errs, fmt.Errorf("publisher backoff delays must be positive and ordered"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Worker.StaleAfter > 0 && c.Worker.StaleAfter < c.Gateway.ChargeTimeout {
		errs = append(errs, fmt.Errorf("worker.stale_after must not undercut gateway.charge_timeout"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if c.Gateway.WebhookSecret == "" {
			errs = append(errs, fmt.Errorf("gateway.webhook_secret required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paycore")
	v.SetDefault("database.database", "paycore")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Gateway defaults
	v.SetDefault("gateway.default", "stripe")
	v.SetDefault("gateway.charge_timeout", "30s")
	v.SetDefault("gateway.circuit_breaker_threshold", 10)
	v.SetDefault("gateway.circuit_breaker_timeout", "30s")

	// Publisher defaults
	v.SetDefault("publisher.batch_size", 50)
	v.SetDefault("publisher.poll_interval", "2s")
	v.SetDefault("publisher.initial_delay", "1s")
	v.SetDefault("publisher.max_delay", "5m")
	v.SetDefault("publisher.alert_attempts", 10)
	v.SetDefault("publisher.stream", "payments:events")

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.consumer_group", "reconcilers")
	v.SetDefault("worker.reconcile_delay", "5s")
	v.SetDefault("worker.max_attempts", 10)
	v.SetDefault("worker.sweep_interval", "1m")
	v.SetDefault("worker.stale_after", "5m")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Auth defaults
	v.SetDefault("auth.jwt_expiry", "24h")

	// Instance ID
	v.SetDefault("instance_id", "paycore-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
