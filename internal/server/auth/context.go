package auth

import "context"

// Context is the authenticated identity attached to a request.
type Context struct {
	UID   string
	Email string
}

type ctxKey struct{}

// NewContext returns a context carrying the identity.
func NewContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext extracts the identity, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*Context)
	return ac, ok
}
