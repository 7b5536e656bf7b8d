package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// ContextKey is the type of request-scoped values set by the API layer.
type ContextKey string

const (
	// OperatorContextKey holds the authenticated operator name
	OperatorContextKey ContextKey = "operator"

	// TraceIDKey holds the request trace ID
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "" if none is set.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithOperator stores the authenticated operator name in the context.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, OperatorContextKey, operator)
}

// GetOperator returns the operator name set by the auth middleware.
func GetOperator(ctx context.Context) (string, bool) {
	operator, ok := ctx.Value(OperatorContextKey).(string)
	return operator, ok && operator != ""
}

// generateTraceID returns 32 hex characters. When crypto/rand fails it falls
// back to a random UUID, whose generator has its own entropy pool.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		id := uuid.New()
		return hex.EncodeToString(id[:])
	}
	return hex.EncodeToString(b)
}
