// Package ctxkeys carries request-scoped identifiers through a context.
package ctxkeys

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	ownerIDKey   contextKey = "owner_id"
)

// WithRequestID attaches the request ID assigned by the HTTP layer.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID, if one is set.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithOwnerID attaches the authenticated owner.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerID returns the authenticated owner, if one is set.
func OwnerID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
