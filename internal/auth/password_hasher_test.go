package auth

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == "password123" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !hasher.Verify("password123", hash) {
		t.Error("expected password to verify against its own hash")
	}
	if hasher.Verify("password124", hash) {
		t.Error("expected a different password to be rejected")
	}
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.Hash("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	second, err := hasher.Hash("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if first == second {
		t.Error("expected two hashes of the same password to differ")
	}
	if !hasher.Verify("password123", first) || !hasher.Verify("password123", second) {
		t.Error("expected both hashes to verify")
	}
}

func TestBcryptHasher_VerifyMalformedHash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	for _, hash := range []string{"", "not-a-hash", "$2a$04$short"} {
		if hasher.Verify("password123", hash) {
			t.Errorf("malformed hash %q should never verify", hash)
		}
	}
}

func TestNewBcryptHasher_Cost(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{"default", 0, BcryptCost},
		{"below minimum", 1, bcrypt.MinCost},
		{"above maximum", 99, bcrypt.MaxCost},
		{"explicit", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewBcryptHasher(tt.cost).Cost(); got != tt.want {
				t.Errorf("expected cost %d, got %d", tt.want, got)
			}
		})
	}
}

func TestBcryptHasher_HashEmbedsCost(t *testing.T) {
	hash, err := NewBcryptHasher(bcrypt.MinCost).Hash("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	cost, err := GetBcryptCost(hash)
	if err != nil {
		t.Fatalf("failed to read cost: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("expected cost %d, got %d", bcrypt.MinCost, cost)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"empty", "", ErrWeakPassword},
		{"seven characters", "1234567", ErrWeakPassword},
		{"eight characters", "12345678", nil},
		{"four multibyte characters", "日本語パ", ErrWeakPassword},
		{"four two-byte runes", "éééé", ErrWeakPassword},
		{"eight two-byte runes", "éééééééé", nil},
		{"bcrypt limit", strings.Repeat("a", MaxPasswordLength), nil},
		{"over bcrypt limit", strings.Repeat("a", MaxPasswordLength+1), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePassword(tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// Fewer than eight characters is weak, more than 72 bytes is too long, anything else passes
func TestProperty_PasswordLengthPolicy(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		password := rapid.StringN(0, 40, -1).Draw(t, "password")
		err := ValidatePassword(password)

		switch {
		case utf8.RuneCountInString(password) < MinPasswordLength:
			if !errors.Is(err, ErrWeakPassword) {
				t.Fatalf("expected ErrWeakPassword for %d characters, got %v", utf8.RuneCountInString(password), err)
			}
		case len(password) > MaxPasswordLength:
			if !errors.Is(err, ErrPasswordTooLong) {
				t.Fatalf("expected ErrPasswordTooLong for %d bytes, got %v", len(password), err)
			}
		default:
			if err != nil {
				t.Fatalf("expected %d-byte password to pass, got %v", len(password), err)
			}
		}
	})
}
