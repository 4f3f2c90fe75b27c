// Package logger provides structured slog logging with correlation ID support
// and redaction of credential-like attributes.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// CorrelationIDKey is the context key for correlation/request ID
	CorrelationIDKey ContextKey = "correlation_id"
	// RequestIDKey is an alias for correlation ID (used by chi middleware)
	RequestIDKey ContextKey = "request_id"
)

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string
	// Format is the log format (json, text)
	Format string
	// Output is the log output destination (stdout, stderr, or file path)
	Output string
	// AddSource adds source file and line number to log entries
	AddSource bool
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     getEnv("LOG_LEVEL", "info"),
		Format:    getEnv("LOG_FORMAT", "json"),
		Output:    getEnv("LOG_OUTPUT", "stdout"),
		AddSource: getBoolEnv("LOG_ADD_SOURCE", false),
	}
}

// Channel names used across the service
const (
	ChannelAuth     = "auth_system"
	ChannelActions  = "user_actions"
	ChannelSecurity = "security"
)

// New creates a new structured logger based on configuration
func New(cfg Config) *slog.Logger {
	return slog.New(NewHandler(cfg))
}

// NewHandler builds the slog handler described by cfg
func NewHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: sanitizeAttributes,
	}

	output := openOutput(cfg.Output)
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// ParseLevel maps debug, info, warn/warning and error to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openOutput resolves stdout, stderr or a file path. An unopenable file falls
// back to stdout.
func openOutput(dest string) io.Writer {
	switch strings.ToLower(dest) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout
	}
	return file
}

// Named returns a child of base tagged with a logger channel name
func Named(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(slog.String("logger", name))
}

const redacted = "[REDACTED]"

// sensitiveFragments are matched as substrings of lower-cased attribute keys,
// so "password" also covers "password_hash" and "new_password".
var sensitiveFragments = []string{
	"password",
	"secret",
	"authorization",
	"credential",
	"api_key",
	"apikey",
	"private_key",
	"access_token",
	"bearer",
}

// sensitiveKeys must match the whole key. "token" is exact so that
// "token_expires" and "token_type" stay readable.
var sensitiveKeys = map[string]bool{
	"token": true,
	"jwt":   true,
}

// sanitizeAttributes masks attributes whose key names a credential
func sanitizeAttributes(groups []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] {
		return slog.String(a.Key, redacted)
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

// WithCorrelationID returns a new logger with the correlation ID from context
func WithCorrelationID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	correlationID := GetCorrelationID(ctx)
	if correlationID == "" {
		return logger
	}
	return logger.With(slog.String("correlation_id", correlationID))
}

// GetCorrelationID extracts the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	// Try correlation_id first
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok && id != "" {
		return id
	}
	// Fall back to request_id (chi middleware uses this)
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return id
	}
	return ""
}

// SetCorrelationID adds a correlation ID to the context
func SetCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

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
