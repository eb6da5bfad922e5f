package middleware

import "context"

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the caller recorded by the Actor middleware.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActor).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the acting user or system into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
