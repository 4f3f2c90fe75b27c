package repository

import (
	"time"
)

// Account represents a registered account in the directory
type Account struct {
	ID           int64      `db:"id"`
	Email        string     `db:"email"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	PasswordHash string     `db:"password_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	IsActive     bool       `db:"is_active"`
}

// clone returns a copy that shares no mutable state with a.
func (a *Account) clone() *Account {
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
