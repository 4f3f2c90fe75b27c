package repository

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// AccountRepository defines the interface for account data access.
// Emails are matched exactly; no case folding is applied.
type AccountRepository interface {
	Create(ctx context.Context, email, firstName, lastName, passwordHash string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	UpdateLastLogin(ctx context.Context, id int64, when time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
	Count(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, cutoff time.Time) (int, error)
}
