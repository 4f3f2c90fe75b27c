package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/welldanyogia/auth-system/internal/metrics"
)

// DBTX is the subset of pgxpool.Pool used by the PostgreSQL repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresAccountRepository implements AccountRepository using PostgreSQL.
// Ids come from the accounts_id_seq sequence; email uniqueness is enforced by
// the idx_accounts_email unique index.
type PostgresAccountRepository struct {
	db  DBTX
	now func() time.Time
}

// NewPostgresAccountRepository creates a new PostgresAccountRepository instance
func NewPostgresAccountRepository(db DBTX, now func() time.Time) *PostgresAccountRepository {
	if now == nil {
		now = time.Now
	}
	return &PostgresAccountRepository{db: db, now: now}
}

const accountColumns = `id, email, first_name, last_name, password_hash, created_at, last_login_at, is_active`

// Create inserts a new account into the database
func (r *PostgresAccountRepository) Create(ctx context.Context, email, firstName, lastName, passwordHash string) (*Account, error) {
	query := `
		INSERT INTO accounts (email, first_name, last_name, password_hash, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id
	`
	defer metrics.TimeQuery("account_create")()

	account := &Account{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
		IsActive:     true,
	}

	err := r.db.QueryRow(ctx, query,
		account.Email,
		account.FirstName,
		account.LastName,
		account.PasswordHash,
		account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return account, nil
}

// GetByID retrieves an account by its id
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	defer metrics.TimeQuery("account_get_by_id")()
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves an account by exact email match
func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	defer metrics.TimeQuery("account_get_by_email")()
	return r.getOne(ctx, query, email)
}

func (r *PostgresAccountRepository) getOne(ctx context.Context, query string, arg any) (*Account, error) {
	account := &Account{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.FirstName,
		&account.LastName,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.LastLoginAt,
		&account.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return account, nil
}

// UpdateLastLogin updates the last_login_at timestamp for an account
func (r *PostgresAccountRepository) UpdateLastLogin(ctx context.Context, id int64, when time.Time) error {
	query := `UPDATE accounts SET last_login_at = $1 WHERE id = $2`
	defer metrics.TimeQuery("account_update_last_login")()
	return r.execOne(ctx, query, when.UTC(), id)
}

// SetActive changes the is_active flag for an account
func (r *PostgresAccountRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE accounts SET is_active = $1 WHERE id = $2`
	defer metrics.TimeQuery("account_set_active")()
	return r.execOne(ctx, query, active, id)
}

func (r *PostgresAccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Count returns the number of accounts
func (r *PostgresAccountRepository) Count(ctx context.Context) (int, error) {
	defer metrics.TimeQuery("account_count")()
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// CountActiveSince returns the number of accounts with last_login_at after cutoff
func (r *PostgresAccountRepository) CountActiveSince(ctx context.Context, cutoff time.Time) (int, error) {
	defer metrics.TimeQuery("account_count_active")()
	var count int
	query := `SELECT COUNT(*) FROM accounts WHERE last_login_at > $1`
	if err := r.db.QueryRow(ctx, query, cutoff.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active accounts: %w", err)
	}
	return count, nil
}
