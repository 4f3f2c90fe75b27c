// Package audit records login attempts and security-relevant events.
package audit

import (
	"time"
)

// DefaultCapacity is the number of login attempts retained when no capacity is configured.
const DefaultCapacity = 1000

// LoginAttempt is a single recorded login attempt. The email need not belong
// to a registered account.
type LoginAttempt struct {
	Email     string    `json:"email"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Severity classifies a security event.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Security event type constants
const (
	EventWeakPasswordAttempt      = "WEAK_PASSWORD_ATTEMPT"
	EventFailedLoginAttempt       = "FAILED_LOGIN_ATTEMPT"
	EventInactiveUserLoginAttempt = "INACTIVE_USER_LOGIN_ATTEMPT"
	EventDuplicateRegistration    = "DUPLICATE_REGISTRATION_ATTEMPT"
	EventAccountActivated         = "ACCOUNT_ACTIVATED"
	EventAccountDeactivated       = "ACCOUNT_DEACTIVATED"
)

// User action constants
const (
	ActionUserRegistered = "USER_REGISTERED"
	ActionUserLogin      = "USER_LOGIN"
	ActionUserLogout     = "USER_LOGOUT"
	ActionProfileAccess  = "PROFILE_ACCESS"
)

// SecurityEvent is a structured security log entry.
type SecurityEvent struct {
	EventType string         `json:"event_type"`
	Severity  Severity       `json:"severity"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// ActionEvent is a structured user action log entry.
type ActionEvent struct {
	Action         string         `json:"action"`
	UserEmail      string         `json:"user_email"`
	IPAddress      string         `json:"ip_address"`
	AdditionalData map[string]any `json:"additional_data"`
	Timestamp      time.Time      `json:"timestamp"`
}

// EventSink receives security and action events. Events are never read back.
type EventSink interface {
	Security(eventType string, details map[string]any, severity Severity)
	Action(action, email, ipAddress string, details map[string]any)
}
