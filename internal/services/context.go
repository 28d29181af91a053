package services

import "context"

type contextKey string

const (
	siteIDKey    contextKey = "site_id"
	operationKey contextKey = "operation"
	requestIDKey contextKey = "request_id"
)

// WithSiteID annotates context with the managed site identifier.
func WithSiteID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, siteIDKey, id)
}

// SiteIDFromContext extracts the site identifier if present.
func SiteIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(siteIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithOperation annotates context with the logical operation name (enqueue, status, ...).
func WithOperation(ctx context.Context, op string) context.Context {
	if op == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, op)
}

// OperationFromContext returns the operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
