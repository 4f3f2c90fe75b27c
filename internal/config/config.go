package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/welldanyogia/auth-system/internal/logger"
)

// Account store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// MinJWTSecretLength is the shortest accepted signing secret
const MinJWTSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Audit    AuditConfig
	Logging  logger.Config
	Store    StoreConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret              string
	AccessTokenExpiry   time.Duration
	FallbackTokenExpiry time.Duration
	Issuer              string
}

// AuthConfig holds password and login policy settings
type AuthConfig struct {
	BcryptCost         int
	ConcealInactive    bool
	DefaultRecentLimit int
	MaxRecentLimit     int
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	AttemptCapacity int
	// LogOutput sends audit events to stdout, stderr or a file. Empty uses the main logger.
	LogOutput string
}

// StoreConfig selects the account backend
type StoreConfig struct {
	Backend string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8000"),
			ReadTimeout:     getSecondsEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getSecondsEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getSecondsEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "auth_system"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("DB_MAX_CONNS", 10),
		},
		JWT: JWTConfig{
			Secret:              getEnv("JWT_SECRET", ""),
			AccessTokenExpiry:   getDurationEnv("JWT_ACCESS_EXPIRY", 30*time.Minute),
			FallbackTokenExpiry: getDurationEnv("JWT_FALLBACK_EXPIRY", 15*time.Minute),
			Issuer:              getEnv("JWT_ISSUER", "auth-system"),
		},
		Auth: AuthConfig{
			BcryptCost:         getIntEnv("AUTH_BCRYPT_COST", 12),
			ConcealInactive:    getBoolEnv("AUTH_CONCEAL_INACTIVE", false),
			DefaultRecentLimit: getIntEnv("AUTH_RECENT_ACTIVITY_DEFAULT", 10),
			MaxRecentLimit:     getIntEnv("AUTH_RECENT_ACTIVITY_MAX", 100),
		},
		Audit: AuditConfig{
			AttemptCapacity: getIntEnv("AUDIT_ATTEMPT_CAPACITY", 1000),
			LogOutput:       getEnv("AUDIT_LOG_OUTPUT", ""),
		},
		Logging: logger.DefaultConfig(),
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("ACCOUNT_STORE", StoreMemory)),
		},
	}
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWT.Secret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength))
	}
	if c.JWT.AccessTokenExpiry <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_EXPIRY must be positive"))
	}
	if c.JWT.FallbackTokenExpiry <= 0 {
		errs = append(errs, errors.New("JWT_FALLBACK_EXPIRY must be positive"))
	}
	if c.Audit.AttemptCapacity <= 0 {
		errs = append(errs, errors.New("AUDIT_ATTEMPT_CAPACITY must be positive"))
	}
	if c.Auth.DefaultRecentLimit <= 0 || c.Auth.MaxRecentLimit < c.Auth.DefaultRecentLimit {
		errs = append(errs, errors.New("recent activity limits must satisfy 0 < default <= max"))
	}
	switch c.Store.Backend {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("ACCOUNT_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Backend))
	}

	return errors.Join(errs...)
}

// Addr returns the host:port the server listens on
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// URL returns the PostgreSQL connection URL used by golang-migrate
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns an integer from environment variable or default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getBoolEnv returns a boolean from environment variable or default
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}

// getDurationEnv returns duration from environment variable or default.
// Plain integers are minutes; Go duration strings are also accepted.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getSecondsEnv returns a duration given in whole seconds or default
func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// getListEnv returns a comma separated list from environment variable or default
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
