package reqctx

import "context"

// Caller is the authenticated service behind a request.
type Caller interface {
	Caller() string
	HasScope(scope string) bool
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, keyCaller, c)
}

// CallerFromContext returns nil for unauthenticated requests and for work that
// did not start from HTTP, such as the NATS worker.
func CallerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(keyCaller).(Caller)
	return c
}
