package handlers

import (
	"context"
	"net/http"

	"github.com/opencrm/rowshare/internal/tenant"
)

// Header names for the identity layer. The engine trusts both values as
// given: authenticating them is the job of whatever sits in front of this
// service.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

type userContextKey struct{}

// UserFromContext returns the authenticated user installed by RequestContext
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userContextKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RequestContext installs the active tenant and the authenticated user into
// the request context. Every request must carry both headers; rejecting here
// is what lets the engine below fail fast instead of guessing a tenant. The
// tenant context lives and dies with the request context, so it is released
// on every exit path, panics included.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(HeaderTenantID)
		if tenantID == "" {
			respondError(w, http.StatusBadRequest, "missing "+HeaderTenantID+" header")
			return
		}
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			respondError(w, http.StatusBadRequest, "missing "+HeaderUserID+" header")
			return
		}

		ctx := tenant.WithTenant(r.Context(), tenantID)
		ctx = context.WithValue(ctx, userContextKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
