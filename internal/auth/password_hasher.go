package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum required password length in characters
	MinPasswordLength = 8
	// MaxPasswordLength is the longest password bcrypt accepts
	MaxPasswordLength = 72
	// BcryptCost is the default cost factor for bcrypt hashing
	BcryptCost = 12
)

// PasswordHasher turns plaintext passwords into one-way hashes and checks
// candidates against them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BcryptHasher is a PasswordHasher backed by bcrypt. Every hash embeds its own
// random salt, so hashing the same password twice gives different results.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A cost of zero selects BcryptCost;
// values outside bcrypt's supported range are clamped.
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost == 0:
		cost = BcryptCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash creates a salted bcrypt hash of the password
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPasswordHash, err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. A malformed hash never matches.
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Cost returns the configured cost factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// ValidatePassword applies the password policy. The minimum counts
// characters; the maximum counts bytes because bcrypt ignores bytes past 72.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// GetBcryptCost extracts the cost factor from a bcrypt hash
func GetBcryptCost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}
