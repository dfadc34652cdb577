// Package auth provides context helpers for the caller's tenant scope.
// Authentication itself happens upstream; the gateway injects the set of
// tenant ids the caller may read, and the middleware parses it into the
// request context.
package auth

import (
	"context"

	"github.com/quillio/quill-engine/pkg/apperrors"
	"github.com/quillio/quill-engine/pkg/models"
)

type contextKey string

const scopeKey contextKey = "tenant_scope"

// WithScope returns a context carrying the caller's tenant scope.
func WithScope(ctx context.Context, scope models.TenantScope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext extracts the tenant scope injected by the middleware.
func ScopeFromContext(ctx context.Context) (models.TenantScope, bool) {
	scope, ok := ctx.Value(scopeKey).(models.TenantScope)
	return scope, ok
}

// RequireScope extracts the tenant scope or fails with ErrNoTenantScope.
// Services call this at their entry points so a request that slipped past
// the middleware still cannot reach the database unscoped.
func RequireScope(ctx context.Context) (models.TenantScope, error) {
	scope, ok := ScopeFromContext(ctx)
	if !ok || scope.IsEmpty() {
		return models.TenantScope{}, apperrors.ErrNoTenantScope
	}
	return scope, nil
}
