package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cityatlas/cityatlas/pkg/database"
	"github.com/cityatlas/cityatlas/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      database.Config
	Redis         RedisConfig
	Observability ObservabilityConfig
	Jobs          JobsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds descriptor cache configuration
type RedisConfig struct {
	// Enabled toggles the descriptor cache; with it off descriptors
	// regenerate from the store on every request.
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// JobsConfig holds background job settings
type JobsConfig struct {
	// InvitationCleanupSchedule and AuditSweepSchedule are cron
	// expressions.
	InvitationCleanupSchedule string
	AuditSweepSchedule        string
	AuditRetention            time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Observability: loadObservabilityConfig(),
		Jobs:          loadJobsConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CITYATLAS_HOST", "0.0.0.0"),
		Port:            getEnv("CITYATLAS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CITYATLAS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CITYATLAS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CITYATLAS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CITYATLAS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CITYATLAS_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() database.Config {
	cfg := database.DefaultConfig()
	cfg.URL = getEnv("CITYATLAS_POSTGRES_URL", "")
	if maxConns := getEnvInt("CITYATLAS_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("CITYATLAS_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("CITYATLAS_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	if lifetime := getEnvDuration("CITYATLAS_POSTGRES_CONN_LIFETIME", 0); lifetime > 0 {
		cfg.MaxLifetime = lifetime
	}
	return cfg
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  getEnvBool("CITYATLAS_REDIS_ENABLED", true),
		Addr:     getEnv("CITYATLAS_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("CITYATLAS_REDIS_PASSWORD", ""),
		DB:       getEnvInt("CITYATLAS_REDIS_DB", 0),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("CITYATLAS_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CITYATLAS_METRICS_ENABLED", true),
	}
}

func loadJobsConfig() JobsConfig {
	return JobsConfig{
		InvitationCleanupSchedule: getEnv("CITYATLAS_INVITATION_CLEANUP_SCHEDULE", "@hourly"),
		AuditSweepSchedule:        getEnv("CITYATLAS_AUDIT_SWEEP_SCHEDULE", "@daily"),
		AuditRetention:            getEnvDuration("CITYATLAS_AUDIT_RETENTION", 90*24*time.Hour),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when the descriptor cache is enabled")
	}

	if c.Jobs.AuditRetention <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
