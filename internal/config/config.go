// Package config provides centralized configuration management for the
// loader. It reads environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds destination database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 16).
	// This is also the upper bound on parallel file ingestion.
	MaxConns int `env:"DB_MAX_CONNS" default:"16"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// IngestConfig holds GeoJSON ingestion settings.
type IngestConfig struct {
	// MaxConcurrent caps parallel file jobs. 0 means match DB_MAX_CONNS.
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"0"`

	// Timeout is the maximum duration for a whole batch (default: 1h)
	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"1h"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
