package auth

import (
	"context"

	"github.com/alusatu/marketplace/internal/storage"
)

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user storage.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (storage.User, bool) {
	user, ok := ctx.Value(contextKey{}).(storage.User)
	return user, ok
}
