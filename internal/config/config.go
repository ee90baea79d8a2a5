// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Fields are populated from environment variables.
type Config struct {
	// Server settings
	Port int    // HTTP port to listen on
	Env  string // development, staging, production

	// Database
	DatabasePath string // Path to SQLite file

	// Authentication
	APIKey string // API key for authenticated endpoints

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Calendar
	Timezone       string        // IANA zone the day boundary is computed in
	LedgerStrict   bool          // report malformed anchor gaps instead of projecting over them
	LocationMaxAge time.Duration // cached locations older than this are logged as stale

	// Fallback observer position, used when no location has been cached.
	// Both are nil or both are set.
	DefaultLatitude  *float64
	DefaultLongitude *float64

	location *time.Location
}

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Load reads configuration from environment variables.
// In development, it first loads from .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	// This is a no-op in production where env vars are set directly
	_ = godotenv.Load()

	cfg := &Config{}
	var parseErrs []error

	// Server settings
	cfg.Port = getEnvInt("PORT", 8080)
	cfg.Env = getEnv("ENV", EnvDevelopment)

	// Database
	cfg.DatabasePath = getEnv("DATABASE_PATH", "./data/lunar.db")

	// Authentication
	cfg.APIKey = getEnv("API_KEY", "")

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "text")

	// Calendar
	cfg.Timezone = getEnv("TIMEZONE", "UTC")
	cfg.LedgerStrict = getEnvBool("LEDGER_STRICT", true)
	cfg.LocationMaxAge = getEnvDuration("LOCATION_MAX_AGE", 720*time.Hour)

	var err error
	if cfg.DefaultLatitude, err = getEnvFloat("DEFAULT_LATITUDE"); err != nil {
		parseErrs = append(parseErrs, err)
	}
	if cfg.DefaultLongitude, err = getEnvFloat("DEFAULT_LONGITUDE"); err != nil {
		parseErrs = append(parseErrs, err)
	}

	// Validate configuration
	if err := errors.Join(append(parseErrs, cfg.Validate())...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []error

	// Validate port range
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	// Validate environment
	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// Valid
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of: development, staging, production; got %q", c.Env))
	}

	// Validate database path is set
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_PATH is required"))
	}

	// API key is required in production
	if c.Env == EnvProduction && c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required in production"))
	}

	// Validate log level
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %q", c.LogLevel))
	}

	// Validate log format
	switch c.LogFormat {
	case "json", "text":
		// Valid
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of: json, text; got %q", c.LogFormat))
	}

	// Timezone must be loadable; an empty value means UTC
	if loc, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q is not a known IANA zone: %w", c.Timezone, err))
	} else {
		c.location = loc
	}

	if c.LocationMaxAge < 0 {
		errs = append(errs, fmt.Errorf("LOCATION_MAX_AGE must not be negative, got %s", c.LocationMaxAge))
	}

	// Fallback position is all or nothing
	if (c.DefaultLatitude == nil) != (c.DefaultLongitude == nil) {
		errs = append(errs, errors.New("DEFAULT_LATITUDE and DEFAULT_LONGITUDE must be set together"))
	}
	if c.DefaultLatitude != nil && (*c.DefaultLatitude < -90 || *c.DefaultLatitude > 90) {
		errs = append(errs, fmt.Errorf("DEFAULT_LATITUDE must be between -90 and 90, got %v", *c.DefaultLatitude))
	}
	if c.DefaultLongitude != nil && (*c.DefaultLongitude < -180 || *c.DefaultLongitude > 180) {
		errs = append(errs, fmt.Errorf("DEFAULT_LONGITUDE must be between -180 and 180, got %v", *c.DefaultLongitude))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Location returns the configured time zone, UTC if it was never validated.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			c.location = loc
		} else {
			return time.UTC
		}
	}
	return c.location
}

// HasDefaultLocation reports whether a fallback observer position is set.
func (c *Config) HasDefaultLocation() bool {
	return c.DefaultLatitude != nil && c.DefaultLongitude != nil
}

// getEnv reads an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool reads an environment variable as a boolean with a default fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration reads an environment variable as a time.Duration with a default fallback.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvFloat reads an optional float. Unset returns nil; garbage is an error.
func getEnvFloat(key string) (*float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number, got %q", key, value)
	}
	return &f, nil
}
