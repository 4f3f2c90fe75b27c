package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/welldanyogia/auth-system/internal/audit"
	appctx "github.com/welldanyogia/auth-system/internal/context"
	"github.com/welldanyogia/auth-system/internal/logger"
)

// APIResponse represents the standard API response format
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents the error detail in API response
type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// RegisterResponse is returned when an account is created
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// RecentActivityResponse wraps the newest login attempts
type RecentActivityResponse struct {
	RecentActivities []audit.LoginAttempt `json:"recent_activities"`
}

// unknownUserAgent is recorded when the client sends no User-Agent header
const unknownUserAgent = "unknown"

// AuthHandler handles HTTP requests for authentication endpoints
type AuthHandler struct {
	authService *AuthService
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(authService *AuthService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names in validation details
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &AuthHandler{
		authService: authService,
		validate:    v,
		logger:      log,
	}
}

// Register handles account registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := h.authService.Register(r.Context(), req, getClientIP(r), userAgent(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrPasswordTooLong):
			h.writeError(w, http.StatusBadRequest, CodeWeakPassword, capitalize(err.Error()), nil)
		case errors.Is(err, ErrDuplicateAccount):
			h.writeError(w, http.StatusConflict, CodeEmailExists, "Email already registered", nil)
		default:
			h.internalError(w, r, "Registration failed", err)
		}
		return
	}

	h.writeSuccess(w, http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		UserID:  userID,
	})
}

// Login handles credential verification and token issuance
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	response, err := h.authService.Login(r.Context(), req, getClientIP(r), userAgent(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password", nil)
		case errors.Is(err, ErrAccountInactive):
			h.writeError(w, http.StatusUnauthorized, CodeAccountInactive, "Account is inactive", nil)
		default:
			h.internalError(w, r, "Login failed", err)
		}
		return
	}

	h.writeSuccess(w, http.StatusOK, response)
}

// Profile returns the authenticated account
// GET /api/v1/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.ExtractAccount(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Invalid or expired token", nil)
		return
	}

	h.writeSuccess(w, http.StatusOK, h.authService.Profile(r.Context(), account, getClientIP(r)))
}

// Logout records the logout of the authenticated account
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.ExtractAccount(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Invalid or expired token", nil)
		return
	}

	h.authService.Logout(r.Context(), account, getClientIP(r))
	h.writeSuccess(w, http.StatusOK, map[string]string{
		"message": "Successfully logged out",
	})
}

// Stats returns aggregate account and login statistics
// GET /api/v1/auth/stats
func (h *AuthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.authService.Stats(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to compute statistics", err)
		return
	}

	h.logger.Info("Auth stats requested",
		"total_users", stats.TotalUsers,
		"login_attempts_today", stats.LoginAttemptsToday,
	)
	h.writeSuccess(w, http.StatusOK, stats)
}

// RecentActivity returns the newest login attempts
// GET /api/v1/auth/recent-activity?limit=N
func (h *AuthHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", map[string][]string{
				"limit": {"must be an integer"},
			})
			return
		}
		limit = n
	}

	h.writeSuccess(w, http.StatusOK, RecentActivityResponse{
		RecentActivities: h.authService.RecentActivity(limit),
	})
}

// decodeAndValidate parses the JSON body into dst and runs struct validation.
// It writes the error response and returns false on failure.
func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			h.writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", nil)
			return false
		}
		details := make(map[string][]string)
		for _, fe := range fieldErrs {
			details[fe.Field()] = append(details[fe.Field()], validationMessage(fe))
		}
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", details)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	default:
		return "Invalid value"
	}
}

func (h *AuthHandler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	logger.WithCorrelationID(r.Context(), h.logger).Error(message, "error", err)
	h.writeError(w, http.StatusInternalServerError, CodeInternalError, message, nil)
}

// writeSuccess writes a successful JSON response
func (h *AuthHandler) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}

// writeError writes an error JSON response
func (h *AuthHandler) writeError(w http.ResponseWriter, statusCode int, code, message string, details map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, the first is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return unknownUserAgent
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
