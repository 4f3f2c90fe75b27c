package context

import (
	"context"

	"github.com/welldanyogia/auth-system/internal/repository"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// AccountKey is the context key for the authenticated account
const AccountKey ContextKey = "account"

// WithAccount returns a copy of ctx carrying account
func WithAccount(ctx context.Context, account *repository.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// ExtractAccount extracts the authenticated account from the request context
func ExtractAccount(ctx context.Context) (*repository.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*repository.Account)
	return account, ok && account != nil
}
