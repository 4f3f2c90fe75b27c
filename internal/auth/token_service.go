package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenExpiry is the lifetime of tokens issued at login
	DefaultAccessTokenExpiry = 30 * time.Minute
	// DefaultFallbackTokenExpiry applies when a token is issued without a lifetime
	DefaultFallbackTokenExpiry = 15 * time.Minute
)

// Claims represents the JWT claims structure. The subject is the account email.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Email returns the account email from the Subject claim
func (c *Claims) Email() string {
	return c.Subject
}

// TokenService issues and validates HS256 signed bearer tokens
type TokenService struct {
	secret              []byte
	accessTokenExpiry   time.Duration
	fallbackTokenExpiry time.Duration
	issuer              string
	now                 func() time.Time
}

// TokenServiceConfig holds configuration for TokenService
type TokenServiceConfig struct {
	Secret              string
	AccessTokenExpiry   time.Duration
	FallbackTokenExpiry time.Duration
	Issuer              string
	// Now overrides the clock used for iat, exp and validation
	Now func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	if cfg.AccessTokenExpiry <= 0 {
		cfg.AccessTokenExpiry = DefaultAccessTokenExpiry
	}
	if cfg.FallbackTokenExpiry <= 0 {
		cfg.FallbackTokenExpiry = DefaultFallbackTokenExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenService{
		secret:              []byte(cfg.Secret),
		accessTokenExpiry:   cfg.AccessTokenExpiry,
		fallbackTokenExpiry: cfg.FallbackTokenExpiry,
		issuer:              cfg.Issuer,
		now:                 cfg.Now,
	}
}

// Issue signs a token for the account. A non-positive ttl uses the fallback
// lifetime. The returned time is the exp claim as encoded in the token.
func (s *TokenService) Issue(email string, userID int64, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.fallbackTokenExpiry
	}

	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// IssueAccessToken signs a token with the configured access lifetime
func (s *TokenService) IssueAccessToken(email string, userID int64) (string, time.Time, error) {
	return s.Issue(email, userID, s.accessTokenExpiry)
}

// Validate checks the signature, algorithm, expiry and issuer of a token and
// returns its claims. Every failure is reported as ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetAccessTokenExpiry returns the access token expiry duration
func (s *TokenService) GetAccessTokenExpiry() time.Duration {
	return s.accessTokenExpiry
}
