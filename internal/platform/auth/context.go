package auth

import (
	"context"

	"github.com/sigchi/clinic/internal/policy"
)

type contextKey string

const CallerKey contextKey = "caller"

// WithCaller stores the resolved caller on ctx.
func WithCaller(ctx context.Context, c policy.Caller) context.Context {
	return context.WithValue(ctx, CallerKey, c)
}

// CallerFromContext returns the caller set by Middleware. ok is false on
// public routes.
func CallerFromContext(ctx context.Context) (policy.Caller, bool) {
	c, ok := ctx.Value(CallerKey).(policy.Caller)
	return c, ok
}

// UserIDFromContext returns the caller's user id or 0.
func UserIDFromContext(ctx context.Context) int64 {
	c, _ := CallerFromContext(ctx)
	return c.UserID
}

// RoleFromContext returns the caller's role or RoleUnknown.
func RoleFromContext(ctx context.Context) policy.Role {
	c, _ := CallerFromContext(ctx)
	return c.Role
}
