package middlewarex

import "context"

type ctxKey string

const (
	ctxCallerID ctxKey = "caller_id"
)

// WithCallerID tags the request context with the authenticated API caller.
func WithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCallerID, id)
}

func CallerID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxCallerID).(string)
	return v, ok
}
