// AngelaMos | 2026
// context.go

// Package tenant carries the per-request tenant binding and the query
// scoping layer that keeps every persistence operation inside it.
//
// The binding lives on the request's context.Context, never in package
// state, so concurrent requests cannot observe each other's tenant and
// the binding is released with the request on every exit path.
package tenant

import (
	"context"
	"errors"
)

var ErrNoTenant = errors.New("no tenant bound to context")

type ctxKey struct{}

// WithTenant binds a tenant identifier to the context. An empty identifier
// is a valid binding and remains distinguishable from no binding at all.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenantID)
}

// FromContext reports the bound tenant identifier. The second return value
// is false when no tenant was ever bound, e.g. during registration before
// an organization exists.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}
