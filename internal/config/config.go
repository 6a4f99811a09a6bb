package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Governance GovernanceConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

// DatabaseConfig holds Postgres connection and migration configuration
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	ConnectTimeout     time.Duration
	SlowQueryThreshold time.Duration
	MigrationsPath     string
}

// CacheConfig holds cache provider configuration
type CacheConfig struct {
	Provider      string // "memory" or "redis"
	TTL           time.Duration
	MaxKeys       int
	RedisURL      string
	RedisDB       int
	RedisPassword string
	PoolSize      int
}

// GovernanceConfig holds community governance policy knobs.
// Quorum and phase lengths are community-wide constants stamped onto each
// proposal at creation; they do not scale with community size.
type GovernanceConfig struct {
	DeliberationDays int
	VotingDays       int
	DefaultQuorum    int
	MinProposerTier  int
	MinVoterTier     int
	MaxLifetime      time.Duration
	TickInterval     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, applying defaults
// suitable for development
func Load() (*Config, error) {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	env := getEnv("GO_ENV", "development")

	cfg := &Config{
		Server:     loadServerConfig(env),
		Database:   loadDatabaseConfig(env),
		Cache:      loadCacheConfig(),
		Governance: loadGovernanceConfig(),
		Logging:    loadLoggingConfig(env),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig(env string) ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Environment:     env,
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig(env string) DatabaseConfig {
	cfg := DatabaseConfig{
		URL:                getEnv("DATABASE_URL", ""),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", 0),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", 0),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", 0),
		ConnMaxIdleTime:    getDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		ConnectTimeout:     getDurationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 0),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "migrations"),
	}

	// Environment-specific pool defaults
	switch env {
	case "production":
		applyPoolDefaults(&cfg, 50, 20, 15*time.Minute, 200*time.Millisecond)
	case "staging":
		applyPoolDefaults(&cfg, 25, 10, 10*time.Minute, 100*time.Millisecond)
	default:
		applyPoolDefaults(&cfg, 10, 5, 5*time.Minute, 50*time.Millisecond)
	}

	return cfg
}

func applyPoolDefaults(cfg *DatabaseConfig, open, idle int, lifetime, slow time.Duration) {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = open
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = idle
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = lifetime
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = slow
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Provider:      getEnv("CACHE_PROVIDER", "memory"),
		TTL:           getDurationEnv("CACHE_TTL", 5*time.Minute),
		MaxKeys:       getIntEnv("CACHE_MAX_KEYS", 10000),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		PoolSize:      getIntEnv("REDIS_POOL_SIZE", 10),
	}
}

func loadGovernanceConfig() GovernanceConfig {
	return GovernanceConfig{
		DeliberationDays: getIntEnv("GOVERNANCE_DELIBERATION_DAYS", 7),
		VotingDays:       getIntEnv("GOVERNANCE_VOTING_DAYS", 7),
		DefaultQuorum:    getIntEnv("GOVERNANCE_DEFAULT_QUORUM", 10),
		MinProposerTier:  getIntEnv("GOVERNANCE_MIN_PROPOSER_TIER", 4),
		MinVoterTier:     getIntEnv("GOVERNANCE_MIN_VOTER_TIER", 2),
		MaxLifetime:      getDurationEnv("GOVERNANCE_MAX_LIFETIME", 90*24*time.Hour),
		TickInterval:     getDurationEnv("GOVERNANCE_TICK_INTERVAL", 10*time.Minute),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	format := "json"
	if env == "development" {
		format = "console"
	}
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", format),
	}
}

// Validate checks required configuration values
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Cache.Provider == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when CACHE_PROVIDER=redis")
	}
	if c.Governance.DeliberationDays < 1 || c.Governance.VotingDays < 1 {
		return fmt.Errorf("governance phase lengths must be at least one day")
	}
	if c.Governance.DefaultQuorum < 1 {
		return fmt.Errorf("governance quorum must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ===============================
// ENVIRONMENT HELPERS
// ===============================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
