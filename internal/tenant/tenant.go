// Package tenant carries the active tenant through a request's context.
//
// The active tenant is request-scoped state: it is installed by the transport
// layer when a request begins and vanishes with the request's context on every
// exit path. It is deliberately not a process global so that two concurrent
// requests for different tenants can never observe each other's tenant.
package tenant

import "context"

type contextKey struct{}

// WithTenant returns a context carrying the given tenant ID as the active
// tenant for all enforcement decisions made under it.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext returns the active tenant ID. Callers that require a tenant and
// get ok == false must fail fast; substituting a default tenant would turn a
// missing-middleware bug into silent cross-tenant leakage.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
