package audit

import (
	"context"
	"log/slog"
	"time"
)

// LogSink writes security and action events as structured slog records.
type LogSink struct {
	security *slog.Logger
	actions  *slog.Logger
	now      func() time.Time
}

// NewLogSink creates a LogSink. Security events go to security and user actions
// to actions; either may be nil to use slog.Default().
func NewLogSink(security, actions *slog.Logger, now func() time.Time) *LogSink {
	if security == nil {
		security = slog.Default()
	}
	if actions == nil {
		actions = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &LogSink{
		security: security,
		actions:  actions,
		now:      now,
	}
}

// Security writes a SECURITY_EVENT record at the level matching severity.
func (s *LogSink) Security(eventType string, details map[string]any, severity Severity) {
	event := SecurityEvent{
		EventType: eventType,
		Severity:  severity,
		Details:   nonNil(details),
		Timestamp: s.now().UTC(),
	}

	s.security.LogAttrs(context.Background(), severity.level(), "SECURITY_EVENT",
		slog.String("event_type", event.EventType),
		slog.String("severity", string(event.Severity)),
		slog.Any("details", event.Details),
		slog.String("timestamp", event.Timestamp.Format(time.RFC3339Nano)),
	)
}

// Action writes a USER_ACTION record.
func (s *LogSink) Action(action, email, ipAddress string, details map[string]any) {
	event := ActionEvent{
		Action:         action,
		UserEmail:      email,
		IPAddress:      ipAddress,
		AdditionalData: nonNil(details),
		Timestamp:      s.now().UTC(),
	}

	s.actions.LogAttrs(context.Background(), slog.LevelInfo, "USER_ACTION",
		slog.String("action", event.Action),
		slog.String("user_email", event.UserEmail),
		slog.String("ip_address", event.IPAddress),
		slog.Any("additional_data", event.AdditionalData),
		slog.String("timestamp", event.Timestamp.Format(time.RFC3339Nano)),
	)
}

func (s Severity) level() slog.Level {
	switch s {
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
