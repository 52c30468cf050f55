package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the loginwatch service
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	DLQ          DLQConfig          `mapstructure:"dlq"`
	Notification NotificationConfig `mapstructure:"notification"`
	Sweep        SweepConfig        `mapstructure:"sweep"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds event and identity storage configuration.
// Backend "memory" keeps everything in process, for local development.
type DatabaseConfig struct {
	Backend        string        `mapstructure:"backend"`
	Postgres       PostgresConfig `mapstructure:"postgres"`
	OpTimeout      time.Duration `mapstructure:"op_timeout"`
	MaxConnectWait time.Duration `mapstructure:"max_connect_wait"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx connection string from the settings.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration for rate limiting
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	Enabled   bool          `mapstructure:"enabled"`
	RateLimit int           `mapstructure:"rate_limit"`
	Window    time.Duration `mapstructure:"window"`
}

// DLQConfig holds dead letter queue configuration
type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NatsURL string `mapstructure:"nats_url"`
}

// NotificationConfig holds report delivery configuration
type NotificationConfig struct {
	SMTP    SMTPConfig `mapstructure:"smtp"`
	Webhook string     `mapstructure:"webhook_url"`
}

// SMTPConfig holds outbound mail settings
type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// SweepConfig holds the failed-login sweep schedule
type SweepConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Lookback  time.Duration `mapstructure:"lookback"`
	Threshold int           `mapstructure:"threshold"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.backend", "postgres")
	v.SetDefault("database.op_timeout", "10s")
	v.SetDefault("database.max_connect_wait", "60s")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "loginwatch")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "loginwatch")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.rate_limit", 100)
	v.SetDefault("redis.window", "1m")

	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")

	v.SetDefault("notification.smtp.enabled", false)
	v.SetDefault("notification.smtp.port", 587)
	v.SetDefault("notification.webhook_url", "")

	v.SetDefault("sweep.enabled", false)
	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("sweep.lookback", "24h")
	v.SetDefault("sweep.threshold", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config: LW_SERVER_PORT, etc.
	v.SetEnvPrefix("LW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
