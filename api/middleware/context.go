package middleware

import (
	"context"

	"github.com/akbarsho/storefront-backend/internal/identity"
)

type contextKey string

const ctxUser contextKey = "user"

// UserFromContext returns the authenticated user seeded by Auth.
func UserFromContext(ctx context.Context) (identity.User, bool) {
	if ctx == nil {
		return identity.User{}, false
	}
	if u, ok := ctx.Value(ctxUser).(identity.User); ok && u.ID != "" {
		return u, true
	}
	return identity.User{}, false
}

// WithUser injects the authenticated user into the context.
func WithUser(ctx context.Context, user identity.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUser, user)
}
