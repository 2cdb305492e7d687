package logger

import "context"

// OperationIDKey is the attribute under which records carry the
// pipeline operation ID.
const OperationIDKey = "op_id"

type contextKey struct{}

// WithOperationID adds a pipeline operation ID to the context.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// OperationIDFromContext extracts the operation ID from context.
func OperationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
