package audit

import "context"

type ctxKey struct{}

// Origin identifies who issued a command.
type Origin struct {
	ClientIP  string
	RequestID string
}

// WithOrigin attaches o to ctx for the audit trail.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, ctxKey{}, o)
}

// OriginFromContext returns the Origin stored by WithOrigin, or the zero value.
func OriginFromContext(ctx context.Context) Origin {
	if ctx == nil {
		return Origin{}
	}
	o, _ := ctx.Value(ctxKey{}).(Origin)
	return o
}
