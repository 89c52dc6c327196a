package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	LegacyPAS  LegacyPASConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for EventStoreDB.
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
}

// LegacyPASConfig holds configuration for the legacy policy administration
// system (MSSQL). Policies issued before the migration still resolve
// coverage through it.
type LegacyPASConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// PolicyTable is the legacy table holding policy records
	PolicyTable string
}

func (l LegacyPASConfig) DSN() string {
	return fmt.Sprintf(
		"server=%s;port=%d;user id=%s;password=%s;database=%s",
		l.Host, l.Port, l.User, l.Password, l.Database,
	)
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "claims"),
			Password: getEnv("DB_PASSWORD", "claims"),
			Database: getEnv("DB_NAME", "claims"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvInt("RATE_LIMIT_RPS", 50),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 100),
		},
		LegacyPAS: LegacyPASConfig{
			Enabled:     getEnvBool("LEGACY_PAS_ENABLED", false),
			Host:        getEnv("LEGACY_PAS_HOST", "localhost"),
			Port:        getEnvInt("LEGACY_PAS_PORT", 1433),
			User:        getEnv("LEGACY_PAS_USER", "sa"),
			Password:    getEnv("LEGACY_PAS_PASSWORD", ""),
			Database:    getEnv("LEGACY_PAS_DATABASE", "policyadmin"),
			PolicyTable: getEnv("LEGACY_PAS_POLICY_TABLE", "dbo.Policies"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
