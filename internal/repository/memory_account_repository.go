package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryAccountRepository implements AccountRepository with in-process maps.
type MemoryAccountRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*Account
	byID    map[int64]*Account
	nextID  int64
	now     func() time.Time
}

// NewMemoryAccountRepository creates an empty in-memory repository.
// A nil now function defaults to time.Now.
func NewMemoryAccountRepository(now func() time.Time) *MemoryAccountRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryAccountRepository{
		byEmail: make(map[string]*Account),
		byID:    make(map[int64]*Account),
		nextID:  1,
		now:     now,
	}
}

// Create inserts a new account. The duplicate check, id assignment and insert
// happen under a single write lock.
func (r *MemoryAccountRepository) Create(ctx context.Context, email, firstName, lastName, passwordHash string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, ErrEmailAlreadyExists
	}

	account := &Account{
		ID:           r.nextID,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
		IsActive:     true,
	}
	r.nextID++

	r.byEmail[email] = account
	r.byID[account.ID] = account

	return account.clone(), nil
}

// GetByID retrieves an account by its id
func (r *MemoryAccountRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account.clone(), nil
}

// GetByEmail retrieves an account by exact email match
func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account.clone(), nil
}

// UpdateLastLogin sets the last login timestamp for an account
func (r *MemoryAccountRepository) UpdateLastLogin(ctx context.Context, id int64, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	t := when.UTC()
	account.LastLoginAt = &t
	return nil
}

// SetActive changes the active flag of an account
func (r *MemoryAccountRepository) SetActive(ctx context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.IsActive = active
	return nil
}

// Count returns the number of accounts
func (r *MemoryAccountRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

// CountActiveSince returns the number of accounts whose last login is after cutoff
func (r *MemoryAccountRepository) CountActiveSince(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, account := range r.byID {
		if account.LastLoginAt != nil && account.LastLoginAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}
