package auth

import (
	"context"
	"strings"
)

// Principal is the authenticated identity attached to a request. Roles are
// not carried here: authorization always reads live grants from the role
// authority, so a stale token cannot keep a revoked role alive.
type Principal struct {
	ActorID string
	Display string
	Origin  string
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil || strings.TrimSpace(v.ActorID) == "" {
		return Principal{}, false
	}
	return *v, true
}
