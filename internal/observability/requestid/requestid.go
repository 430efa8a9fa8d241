// Package requestid carries the per-request correlation id through contexts.
package requestid

import "context"

type ctxKey struct{}

// Header is the HTTP header the id is read from and echoed to
const Header = "X-Request-ID"

// With returns a copy of ctx carrying id
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the request id in ctx, or ""
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
