package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Gateway:  GatewayConfig{ChargeTimeout: 30 * time.Second},
		Publisher: PublisherConfig{
			BatchSize:    50,
			InitialDelay: time.Second,
			MaxDelay:     5 * time.Minute,
		},
		Worker: WorkerConfig{BatchSize: 10},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "stripe", cfg.Gateway.Default)
	assert.Equal(t, 30*time.Second, cfg.Gateway.ChargeTimeout)
	assert.Equal(t, "payments:events", cfg.Publisher.Stream)
	assert.Equal(t, "reconcilers", cfg.Worker.ConsumerGroup)
	assert.Equal(t, 10, cfg.Worker.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Worker.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Worker.StaleAfter)
}

func TestConfig_Validate_Success(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"bad charge timeout", func(c *Config) { c.Gateway.ChargeTimeout = 0 }, "charge_timeout"},
		{"zero publisher batch", func(c *Config) { c.Publisher.BatchSize = 0 }, "batch_size"},
		{"unordered backoff", func(c *Config) { c.Publisher.MaxDelay = time.Millisecond }, "backoff"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"sweep under charge timeout", func(c *Config) { c.Worker.StaleAfter = time.Second }, "stale_after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Validate_ProductionRequirements(t *testing.T) {
	t.Setenv("ENV", "production")

	err := validConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
	assert.Contains(t, err.Error(), "jwt_secret")
	assert.Contains(t, err.Error(), "webhook_secret")
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, User: "paycore", Password: "secret",
		Database: "paycore", SSLMode: "disable",
	}
	dsn := c.DatabaseDSN()
	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=paycore")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestRedisAddr(t *testing.T) {
	c := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", c.RedisAddr())
}
