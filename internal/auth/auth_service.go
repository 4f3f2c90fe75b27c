package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/welldanyogia/auth-system/internal/audit"
	"github.com/welldanyogia/auth-system/internal/metrics"
	"github.com/welldanyogia/auth-system/internal/repository"
)

// Auth service errors
var (
	ErrWeakPassword       = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes long")
	ErrDuplicateAccount   = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnknownSubject     = errors.New("user not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPasswordHash       = errors.New("password hashing failed")
)

// Error codes for API responses
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeAuthTokenMissing   = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid   = "AUTH_TOKEN_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
)

const (
	// TokenTypeBearer is reported alongside every issued access token
	TokenTypeBearer = "bearer"
	// DefaultRecentActivityLimit applies when no limit is requested
	DefaultRecentActivityLimit = 10
	// DefaultMaxRecentActivityLimit caps how many attempts one query returns
	DefaultMaxRecentActivityLimit = 100
	// ActiveUserWindow is how far back a login counts toward active users
	ActiveUserWindow = 30 * 24 * time.Hour
)

// dummyPassword is hashed once and verified against for unknown emails so
// that failed lookups cost the same as failed password checks.
const dummyPassword = "timing-equalization-placeholder"

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int64           `json:"expires_in"`
	User        AccountResponse `json:"user"`
}

// AccountResponse is the public view of an account
type AccountResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// NewAccountResponse builds the public view of account
func NewAccountResponse(account *repository.Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID,
		Email:       account.Email,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		CreatedAt:   account.CreatedAt,
		LastLoginAt: account.LastLoginAt,
		IsActive:    account.IsActive,
	}
}

// Stats is a snapshot of registration and login activity
type Stats struct {
	TotalUsers            int     `json:"total_users"`
	ActiveUsers30Days     int     `json:"active_users_30_days"`
	LoginAttemptsToday    int     `json:"login_attempts_today"`
	SuccessfulLoginsToday int     `json:"successful_logins_today"`
	FailedLoginsToday     int     `json:"failed_logins_today"`
	SuccessRateToday      float64 `json:"success_rate_today"`
}

// AuthServiceConfig holds behavioural options for AuthService
type AuthServiceConfig struct {
	// ConcealInactive reports inactive accounts as invalid credentials
	ConcealInactive bool
	// DefaultRecentLimit is used when RecentActivity is asked for <= 0 entries
	DefaultRecentLimit int
	// MaxRecentLimit caps RecentActivity results
	MaxRecentLimit int
	// Now overrides the clock used for last-login and attempt timestamps
	Now func() time.Time
}

// AuthService handles authentication business logic
type AuthService struct {
	accounts     repository.AccountRepository
	attempts     *audit.AttemptLog
	events       audit.EventSink
	tokenService *TokenService
	hasher       PasswordHasher
	logger       *slog.Logger

	concealInactive    bool
	defaultRecentLimit int
	maxRecentLimit     int
	now                func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	accounts repository.AccountRepository,
	attempts *audit.AttemptLog,
	events audit.EventSink,
	tokenService *TokenService,
	hasher PasswordHasher,
	cfg AuthServiceConfig,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultRecentLimit <= 0 {
		cfg.DefaultRecentLimit = DefaultRecentActivityLimit
	}
	if cfg.MaxRecentLimit <= 0 {
		cfg.MaxRecentLimit = DefaultMaxRecentActivityLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthService{
		accounts:           accounts,
		attempts:           attempts,
		events:             events,
		tokenService:       tokenService,
		hasher:             hasher,
		logger:             logger,
		concealInactive:    cfg.ConcealInactive,
		defaultRecentLimit: cfg.DefaultRecentLimit,
		maxRecentLimit:     cfg.MaxRecentLimit,
		now:                cfg.Now,
	}
}

// Register creates a new account and returns its id. The email is stored
// exactly as given and compared case-sensitively.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, ipAddress, userAgent string) (int64, error) {
	s.logger.Info("Registration attempt", "email", req.Email)

	if err := ValidatePassword(req.Password); err != nil {
		s.events.Security(audit.EventWeakPasswordAttempt, map[string]any{
			"email":      req.Email,
			"ip_address": ipAddress,
		}, audit.SeverityWarning)
		metrics.RecordRegistration(metrics.ResultWeakPassword)
		return 0, err
	}

	// Cheap pre-check to skip hashing for obvious duplicates. Create still
	// enforces uniqueness atomically.
	if _, err := s.accounts.GetByEmail(ctx, req.Email); err == nil {
		return 0, s.duplicate(req.Email, ipAddress)
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		metrics.RecordRegistration(metrics.ResultError)
		return 0, fmt.Errorf("check existing account: %w", err)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("Failed to hash password", "error", err)
		metrics.RecordRegistration(metrics.ResultError)
		if errors.Is(err, ErrPasswordHash) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrPasswordHash, err)
	}

	account, err := s.accounts.Create(ctx, req.Email, req.FirstName, req.LastName, passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyExists) {
			return 0, s.duplicate(req.Email, ipAddress)
		}
		metrics.RecordRegistration(metrics.ResultError)
		return 0, fmt.Errorf("create account: %w", err)
	}

	s.events.Action(audit.ActionUserRegistered, account.Email, ipAddress, map[string]any{
		"user_id":    account.ID,
		"first_name": account.FirstName,
		"last_name":  account.LastName,
		"user_agent": userAgent,
	})
	metrics.RecordRegistration(metrics.ResultSuccess)
	s.logger.Info("User registered successfully", "email", account.Email, "user_id", account.ID)

	return account.ID, nil
}

func (s *AuthService) duplicate(email, ipAddress string) error {
	s.logger.Warn("Attempted to create duplicate account", "email", email)
	s.events.Security(audit.EventDuplicateRegistration, map[string]any{
		"email":      email,
		"ip_address": ipAddress,
	}, audit.SeverityInfo)
	metrics.RecordRegistration(metrics.ResultDuplicate)
	return ErrDuplicateAccount
}

// Login verifies credentials and issues an access token. Every call records
// exactly one login attempt, whatever the outcome.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, ipAddress, userAgent string) (*LoginResponse, error) {
	s.logger.Info("Login attempt", "email", req.Email, "ip_address", ipAddress)

	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		s.recordAttempt(req.Email, ipAddress, userAgent, false)
		metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("look up account: %w", err)
	}

	var valid bool
	if account != nil {
		valid = s.hasher.Verify(req.Password, account.PasswordHash)
	} else {
		s.hasher.Verify(req.Password, s.timingHash())
	}

	if !valid {
		s.recordAttempt(req.Email, ipAddress, userAgent, false)
		s.events.Security(audit.EventFailedLoginAttempt, map[string]any{
			"email":      req.Email,
			"ip_address": ipAddress,
			"user_agent": userAgent,
		}, audit.SeverityWarning)
		metrics.RecordLogin(metrics.ResultInvalidCredentials)
		s.logger.Warn("Failed login attempt", "email", req.Email, "ip_address", ipAddress)
		return nil, ErrInvalidCredentials
	}

	if !account.IsActive {
		s.recordAttempt(req.Email, ipAddress, userAgent, false)
		s.events.Security(audit.EventInactiveUserLoginAttempt, map[string]any{
			"email":      req.Email,
			"ip_address": ipAddress,
		}, audit.SeverityWarning)
		metrics.RecordLogin(metrics.ResultInactive)
		s.logger.Warn("Login attempt on inactive account", "email", req.Email)
		if s.concealInactive {
			return nil, ErrInvalidCredentials
		}
		return nil, ErrAccountInactive
	}

	ttl := s.tokenService.GetAccessTokenExpiry()
	token, expiresAt, err := s.tokenService.Issue(account.Email, account.ID, ttl)
	if err != nil {
		s.recordAttempt(req.Email, ipAddress, userAgent, false)
		metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		s.recordAttempt(req.Email, ipAddress, userAgent, false)
		metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("update last login: %w", err)
	}
	account.LastLoginAt = &now

	s.recordAttempt(req.Email, ipAddress, userAgent, true)
	s.events.Action(audit.ActionUserLogin, account.Email, ipAddress, map[string]any{
		"user_id":       account.ID,
		"user_agent":    userAgent,
		"token_expires": expiresAt.UTC().Format(time.RFC3339),
	})
	metrics.RecordLogin(metrics.ResultSuccess)
	s.logger.Info("User logged in successfully", "email", account.Email)

	return &LoginResponse{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(ttl.Seconds()),
		User:        NewAccountResponse(account),
	}, nil
}

// Authenticate resolves a bearer token to the account it names. The account
// is looked up on every call, so deleted or renamed accounts stop resolving
// immediately.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*repository.Account, error) {
	claims, err := s.tokenService.Validate(token)
	if err != nil {
		metrics.RecordTokenValidation(metrics.ResultInvalid)
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			metrics.RecordTokenValidation(metrics.ResultUnknownSubject)
			return nil, ErrUnknownSubject
		}
		metrics.RecordTokenValidation(metrics.ResultError)
		return nil, fmt.Errorf("look up token subject: %w", err)
	}

	metrics.RecordTokenValidation(metrics.ResultSuccess)
	return account, nil
}

// Logout records a logout action. Tokens are stateless and remain valid
// until they expire.
func (s *AuthService) Logout(ctx context.Context, account *repository.Account, ipAddress string) {
	s.events.Action(audit.ActionUserLogout, account.Email, ipAddress, map[string]any{
		"user_id": account.ID,
	})
	s.logger.Info("User logged out", "email", account.Email)
}

// Profile returns the public view of account and records the access
func (s *AuthService) Profile(ctx context.Context, account *repository.Account, ipAddress string) AccountResponse {
	s.events.Action(audit.ActionProfileAccess, account.Email, ipAddress, map[string]any{
		"user_id": account.ID,
	})
	return NewAccountResponse(account)
}

// SetAccountActive activates or deactivates an account
func (s *AuthService) SetAccountActive(ctx context.Context, id int64, active bool) error {
	if err := s.accounts.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("set account active: %w", err)
	}

	eventType := audit.EventAccountDeactivated
	if active {
		eventType = audit.EventAccountActivated
	}
	s.events.Security(eventType, map[string]any{"user_id": id}, audit.SeverityInfo)
	s.logger.Info("Account status changed", "user_id", id, "active", active)
	return nil
}

// Stats summarises accounts and today's login attempts. "Today" is the
// current UTC calendar date.
func (s *AuthService) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()

	total, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}
	active, err := s.accounts.CountActiveSince(ctx, now.Add(-ActiveUserWindow))
	if err != nil {
		return nil, fmt.Errorf("count active accounts: %w", err)
	}

	attempts := s.attempts.CountOn(now, nil)
	successful := s.attempts.CountOn(now, audit.Succeeded)
	failed := s.attempts.CountOn(now, audit.Failed)

	var rate float64
	if attempts > 0 {
		rate = float64(successful) / float64(attempts) * 100
	}

	return &Stats{
		TotalUsers:            total,
		ActiveUsers30Days:     active,
		LoginAttemptsToday:    attempts,
		SuccessfulLoginsToday: successful,
		FailedLoginsToday:     failed,
		SuccessRateToday:      rate,
	}, nil
}

// RecentActivity returns the newest login attempts. A non-positive limit
// selects the default and large limits are capped.
func (s *AuthService) RecentActivity(limit int) []audit.LoginAttempt {
	if limit <= 0 {
		limit = s.defaultRecentLimit
	}
	if limit > s.maxRecentLimit {
		limit = s.maxRecentLimit
	}
	return s.attempts.Recent(limit)
}

func (s *AuthService) recordAttempt(email, ipAddress, userAgent string, success bool) {
	s.attempts.Record(audit.LoginAttempt{
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   success,
		Timestamp: s.now().UTC(),
	})
	metrics.AttemptLogSize.Set(float64(s.attempts.Len()))
}

// timingHash lazily builds the hash compared against for unknown emails
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("Failed to build timing hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
