package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/welldanyogia/auth-system/internal/auth"
	appctx "github.com/welldanyogia/auth-system/internal/context"
	"github.com/welldanyogia/auth-system/internal/repository"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Authenticator resolves a bearer token to an account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*repository.Account, error)
}

// AuthMiddleware handles bearer token authentication for protected routes
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance
func NewAuthMiddleware(authenticator Authenticator, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// Authenticate validates the bearer token in the Authorization header and
// stores the resolved account in the request context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.writeError(w, http.StatusUnauthorized, auth.CodeAuthTokenMissing, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.writeError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			m.writeError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Token is empty")
			return
		}

		account, err := m.authenticator.Authenticate(r.Context(), tokenString)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				m.writeError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Invalid or expired token")
			case errors.Is(err, auth.ErrUnknownSubject):
				m.writeError(w, http.StatusUnauthorized, auth.CodeUserNotFound, "User not found")
			default:
				m.logger.Error("Token authentication failed", "error", err)
				m.writeError(w, http.StatusInternalServerError, auth.CodeInternalError, "An unexpected error occurred")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(appctx.WithAccount(r.Context(), account)))
	})
}

// writeError writes a JSON error response
func (m *AuthMiddleware) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}

// ExtractAccount extracts the authenticated account from the request context
func ExtractAccount(ctx context.Context) (*repository.Account, bool) {
	return appctx.ExtractAccount(ctx)
}
