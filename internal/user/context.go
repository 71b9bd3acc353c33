package user

import "context"

type contextKey string

const userContextKey contextKey = "auth_user"

// NewContext returns a context carrying the authenticated account.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// FromContext extracts the authenticated account placed by the auth
// middleware.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok
}
