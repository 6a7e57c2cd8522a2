// Package config provides centralized configuration management for Plugmart.
// Configuration is loaded from environment variables with sensible defaults.
// Required configuration that is missing will cause the application to fail fast
// with helpful error messages.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Port int

	// Database configuration
	DBType     string // "sqlite" (default) or "postgres"
	DBPath     string // SQLite file path (when DBType="sqlite")
	DBDSN      string // Full PostgreSQL DSN (takes precedence over individual params)
	DBHost     string // PostgreSQL host
	DBPort     int    // PostgreSQL port (default: 5432)
	DBName     string // PostgreSQL database name
	DBUser     string // PostgreSQL user
	DBPassword string // PostgreSQL password
	DBSSLMode  string // PostgreSQL SSL mode (default: "disable")

	// Connection pool and timeout configuration
	DBMaxConns     int           // Maximum open connections in the pool
	DBProbeTimeout time.Duration // Startup probe timeout before falling back to memory
	DBQueryTimeout time.Duration // Per-operation query timeout

	// Authentication configuration
	JWTSecret     string        // HMAC signing secret; empty falls back to the dev default
	TokenTTL      time.Duration // Session token lifetime
	BcryptCost    int           // bcrypt cost factor
	AdminUsername string        // Seed admin username
	AdminPassword string        // Seed admin password (required, no default)

	// Rate limiting for public write endpoints
	RateLimit float64 // Requests per second per IP (0 = disabled)
	RateBurst int     // Maximum burst size for rate limiter
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Default values
const (
	DefaultPort           = 3000
	DefaultDBType         = "sqlite"
	DefaultDBPath         = "plugmart.db"
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "disable"
	DefaultDBMaxConns     = 10
	DefaultDBProbeTimeout = 5 * time.Second
	DefaultDBQueryTimeout = 10 * time.Second
	DefaultTokenTTL       = 24 * time.Hour
	DefaultBcryptCost     = 10
	DefaultAdminUsername  = "admin"
	DefaultRateLimit      = float64(10) // 10 requests/sec per IP
	DefaultRateBurst      = 20          // burst of 20
)

// Load reads configuration from environment variables and returns a Config.
// It applies defaults for optional values and validates the configuration.
// Returns an error if validation fails.
func Load() (*Config, error) {
	cfg := &Config{
		Port: DefaultPort,

		DBType:    DefaultDBType,
		DBPath:    DefaultDBPath,
		DBPort:    DefaultDBPort,
		DBSSLMode: DefaultDBSSLMode,

		DBMaxConns:     DefaultDBMaxConns,
		DBProbeTimeout: DefaultDBProbeTimeout,
		DBQueryTimeout: DefaultDBQueryTimeout,

		TokenTTL:      DefaultTokenTTL,
		BcryptCost:    DefaultBcryptCost,
		AdminUsername: DefaultAdminUsername,

		RateLimit: DefaultRateLimit,
		RateBurst: DefaultRateBurst,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return cfg, nil
}

// loadFromEnv populates the config from environment variables.
func (c *Config) loadFromEnv() error {
	var parseErrors ValidationErrors

	if v := os.Getenv("PLUGMART_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_PORT",
				Message: fmt.Sprintf("invalid port number: %q (must be an integer)", v),
			})
		} else {
			c.Port = port
		}
	}

	// Database configuration
	if v := os.Getenv("PLUGMART_DB_TYPE"); v != "" {
		c.DBType = v
	}
	if v := os.Getenv("PLUGMART_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("PLUGMART_DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := os.Getenv("PLUGMART_DB_HOST"); v != "" {
		c.DBHost = v
	}
	if v := os.Getenv("PLUGMART_DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_DB_PORT",
				Message: fmt.Sprintf("invalid port number: %q (must be an integer)", v),
			})
		} else {
			c.DBPort = port
		}
	}
	if v := os.Getenv("PLUGMART_DB_NAME"); v != "" {
		c.DBName = v
	}
	if v := os.Getenv("PLUGMART_DB_USER"); v != "" {
		c.DBUser = v
	}
	if v := os.Getenv("PLUGMART_DB_PASSWORD"); v != "" {
		c.DBPassword = v
	}
	if v := os.Getenv("PLUGMART_DB_SSLMODE"); v != "" {
		c.DBSSLMode = v
	}
	if v := os.Getenv("PLUGMART_DB_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_DB_MAX_CONNS",
				Message: fmt.Sprintf("invalid value: %q (must be an integer)", v),
			})
		} else {
			c.DBMaxConns = n
		}
	}
	if v := os.Getenv("PLUGMART_DB_PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_DB_PROBE_TIMEOUT",
				Message: fmt.Sprintf("invalid duration: %q (use e.g. \"5s\")", v),
			})
		} else {
			c.DBProbeTimeout = d
		}
	}
	if v := os.Getenv("PLUGMART_DB_QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_DB_QUERY_TIMEOUT",
				Message: fmt.Sprintf("invalid duration: %q (use e.g. \"10s\")", v),
			})
		} else {
			c.DBQueryTimeout = d
		}
	}

	// Authentication configuration
	if v := os.Getenv("PLUGMART_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("PLUGMART_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_TOKEN_TTL",
				Message: fmt.Sprintf("invalid duration: %q (use e.g. \"24h\")", v),
			})
		} else {
			c.TokenTTL = d
		}
	}
	if v := os.Getenv("PLUGMART_BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_BCRYPT_COST",
				Message: fmt.Sprintf("invalid value: %q (must be an integer)", v),
			})
		} else {
			c.BcryptCost = n
		}
	}
	if v := os.Getenv("PLUGMART_ADMIN_USERNAME"); v != "" {
		c.AdminUsername = v
	}
	if v := os.Getenv("PLUGMART_ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}

	// Rate limiting
	if v := os.Getenv("PLUGMART_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_RATE_LIMIT",
				Message: fmt.Sprintf("invalid value: %q (must be a number)", v),
			})
		} else {
			c.RateLimit = f
		}
	}
	if v := os.Getenv("PLUGMART_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrors = append(parseErrors, ValidationError{
				Field:   "PLUGMART_RATE_BURST",
				Message: fmt.Sprintf("invalid value: %q (must be an integer)", v),
			})
		} else {
			c.RateBurst = n
		}
	}

	if len(parseErrors) > 0 {
		return parseErrors
	}
	return nil
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_PORT",
			Message: fmt.Sprintf("port %d out of range (1-65535)", c.Port),
		})
	}

	switch c.DBType {
	case "sqlite", "postgres":
	default:
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_DB_TYPE",
			Message: fmt.Sprintf("unsupported database type %q (must be \"sqlite\" or \"postgres\")", c.DBType),
		})
	}

	if c.DBType == "postgres" && c.DBDSN == "" && c.DBHost == "" {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_DB_HOST",
			Message: "postgres requires PLUGMART_DB_DSN or PLUGMART_DB_HOST",
		})
	}

	if c.DBMaxConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_DB_MAX_CONNS",
			Message: "must be at least 1",
		})
	}

	// Secret is optional (a documented dev default applies), but when set it
	// must be long enough to be worth signing with.
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_JWT_SECRET",
			Message: "must be at least 32 characters",
		})
	}

	if c.TokenTTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_TOKEN_TTL",
			Message: "must be a positive duration",
		})
	}

	if c.BcryptCost < 10 || c.BcryptCost > 31 {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_BCRYPT_COST",
			Message: fmt.Sprintf("cost %d out of range (10-31)", c.BcryptCost),
		})
	}

	if c.AdminUsername == "" {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_ADMIN_USERNAME",
			Message: "must not be empty",
		})
	}

	// No default is shipped for the seed admin password; deployments must set one.
	if c.AdminPassword == "" {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_ADMIN_PASSWORD",
			Message: "is required (no default is provided)",
		})
	}

	if c.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_RATE_LIMIT",
			Message: "must not be negative",
		})
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "PLUGMART_RATE_BURST",
			Message: "must be at least 1 when rate limiting is enabled",
		})
	}

	return errs
}

// DSN returns the database connection string for the configured backend.
// For PostgreSQL, PLUGMART_DB_DSN takes precedence over individual parameters.
func (c *Config) DSN() string {
	if c.DBType == "sqlite" {
		return c.DBPath
	}
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode)
}

// IsSQLite reports whether the durable backend is SQLite.
func (c *Config) IsSQLite() bool {
	return c.DBType == "sqlite"
}

// IsPostgres reports whether the durable backend is PostgreSQL.
func (c *Config) IsPostgres() bool {
	return c.DBType == "postgres"
}

// LoadWithFlags loads configuration and applies command-line flag overrides.
// Flag values take precedence over environment variables when non-zero.
func LoadWithFlags(port int, dbPath string) (*Config, error) {
	cfg := &Config{
		Port: DefaultPort,

		DBType:    DefaultDBType,
		DBPath:    DefaultDBPath,
		DBPort:    DefaultDBPort,
		DBSSLMode: DefaultDBSSLMode,

		DBMaxConns:     DefaultDBMaxConns,
		DBProbeTimeout: DefaultDBProbeTimeout,
		DBQueryTimeout: DefaultDBQueryTimeout,

		TokenTTL:      DefaultTokenTTL,
		BcryptCost:    DefaultBcryptCost,
		AdminUsername: DefaultAdminUsername,

		RateLimit: DefaultRateLimit,
		RateBurst: DefaultRateBurst,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if port != 0 && port != DefaultPort {
		cfg.Port = port
	}
	if dbPath != "" && dbPath != DefaultDBPath {
		cfg.DBPath = dbPath
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return cfg, nil
}
