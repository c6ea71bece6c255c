package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextUserKey   ctxKey = "userID"
	ContextTenantKey ctxKey = "tenantID"
)

func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ContextUserKey)
}

func TenantIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ContextTenantKey)
}

// ContextWithPrincipal records the authenticated user and tenant ids so that
// loggers and audit handlers can pick them up without importing domain types.
func ContextWithPrincipal(ctx context.Context, userID, tenantID string) context.Context {
	ctx = context.WithValue(ctx, ContextUserKey, userID)
	return context.WithValue(ctx, ContextTenantKey, tenantID)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
