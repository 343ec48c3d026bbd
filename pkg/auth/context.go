package auth

import (
	"context"
)

type contextKey string

// ContextKeyOperator holds the subject of the operator token
const ContextKeyOperator contextKey = "operator"

// WithOperator stores the authenticated operator subject in ctx
func WithOperator(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeyOperator, subject)
}

// OperatorFromContext returns the operator subject set by the middleware
func OperatorFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(ContextKeyOperator).(string)
	return sub, ok
}
