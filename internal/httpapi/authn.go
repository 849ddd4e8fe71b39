package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"meshadmin.org/internal/auth"
	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/rbac"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// TokenSigner is the slice of the session signer the HTTP layer needs.
type TokenSigner interface {
	Generate(actorID, display string) (string, time.Time, error)
	ParseAndValidate(token string) (*auth.Claims, error)
}

var _ TokenSigner = (*auth.Signer)(nil)

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/",
}

// withAuth authenticates every non-public request and attaches the principal
// to the context. Roles are not read here: handlers authorize against live
// grants through the guard.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.signer.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		principal := auth.Principal{
			ActorID: claims.Subject,
			Display: claims.Display,
			Origin:  clientIP(r),
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// authorize resolves the request principal and checks the requirement against
// live effective roles. On failure the response is already written.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, req guard.Requirement) (auth.Principal, []rbac.Role, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, nil, false
	}
	held, err := a.guard.Authorize(r.Context(), principal.ActorID, req)
	if err != nil {
		if errors.Is(err, guard.ErrUnauthorized) {
			writeError(w, r, http.StatusForbidden, err.Error())
		} else {
			writeError(w, r, http.StatusInternalServerError, "authorization failed")
		}
		return auth.Principal{}, nil, false
	}
	return principal, held, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
