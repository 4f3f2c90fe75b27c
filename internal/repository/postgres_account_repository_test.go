package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

var accountRowColumns = []string{
	"id", "email", "first_name", "last_name", "password_hash", "created_at", "last_login_at", "is_active",
}

func newMockRepo(t *testing.T) (*PostgresAccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresAccountRepository(mock, fixedNow), mock
}

func TestPostgresAccountRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantID    int64
		wantErr   error
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO accounts`).
					WithArgs("a@x.com", "A", "B", "hash", fixedNow()).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
			},
			wantID: 7,
		},
		{
			name: "unique violation maps to ErrEmailAlreadyExists",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO accounts`).
					WithArgs("a@x.com", "A", "B", "hash", fixedNow()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: ErrEmailAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.setupMock(mock)

			account, err := repo.Create(context.Background(), "a@x.com", "A", "B", "hash")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if account.ID != tt.wantID || !account.IsActive || account.LastLoginAt != nil {
					t.Errorf("unexpected account: %+v", account)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestPostgresAccountRepository_CreateWrapsOtherErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	dbErr := errors.New("connection refused")
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(dbErr)

	_, err := repo.Create(context.Background(), "a@x.com", "A", "B", "hash")
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped database error, got %v", err)
	}
	if errors.Is(err, ErrEmailAlreadyExists) {
		t.Error("generic failure must not be reported as duplicate")
	}
}

func TestPostgresAccountRepository_GetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	lastLogin := fixedNow().Add(-time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows(accountRowColumns).
			AddRow(int64(1), "a@x.com", "A", "B", "hash", fixedNow(), &lastLogin, true))

	account, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.ID != 1 || account.Email != "a@x.com" || !account.IsActive {
		t.Errorf("unexpected account: %+v", account)
	}
	if account.LastLoginAt == nil || !account.LastLoginAt.Equal(lastLogin) {
		t.Errorf("unexpected last login: %v", account.LastLoginAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresAccountRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(accountRowColumns))

	_, err := repo.GetByID(context.Background(), 42)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestPostgresAccountRepository_UpdateLastLogin(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "missing account", affected: 0, wantErr: ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec(`UPDATE accounts SET last_login_at`).
				WithArgs(fixedNow(), int64(1)).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.UpdateLastLogin(context.Background(), 1, fixedNow())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestPostgresAccountRepository_SetActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`UPDATE accounts SET is_active`).
		WithArgs(false, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetActive(context.Background(), 3, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresAccountRepository_Counts(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := fixedNow().Add(-30 * 24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts$`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE last_login_at > \$1`).
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	total, err := repo.Count(context.Background())
	if err != nil || total != 5 {
		t.Fatalf("expected 5 accounts, got %d (%v)", total, err)
	}
	active, err := repo.CountActiveSince(context.Background(), cutoff)
	if err != nil || active != 2 {
		t.Fatalf("expected 2 active accounts, got %d (%v)", active, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
