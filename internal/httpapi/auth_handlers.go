package httpapi

import (
	"net/http"
	"strings"
	"time"

	"meshadmin.org/internal/audit"
	"meshadmin.org/internal/auth"
	"meshadmin.org/internal/rbac"
)

type loginRequest struct {
	ActorID         string   `json:"actor_id"`
	Display         string   `json:"display"`
	DirectoryGroups []string `json:"directory_groups"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Roles     []rbac.Role `json:"roles"`
}

// handleLogin exchanges an identity already verified upstream (the identity
// provider terminates in front of this service) for a session token. The
// actor's directory grants are resynced from the presented group list on
// every login, so directory role changes take effect at the next session.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		writeError(w, r, http.StatusBadRequest, "actor_id is required")
		return
	}

	if len(a.groupToRole) > 0 {
		if err := a.authority.Resync(r.Context(), actorID, req.DirectoryGroups, a.groupToRole); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	roles, err := a.authority.EffectiveRoles(r.Context(), actorID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	token, expiresAt, err := a.signer.Generate(actorID, req.Display)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	a.ledger.Record(r.Context(), audit.Entry{
		ActorID:      actorID,
		ActorDisplay: strings.TrimSpace(req.Display),
		ActorOrigin:  clientIP(r),
		Action:       "auth.login",
		ResourceType: "session",
		Metadata: map[string]string{
			"expires_at": expiresAt.Format(time.RFC3339),
		},
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Roles:     roles,
	})
}

// handleLogout is an audit marker: the token stays valid until expiry, so a
// short TTL is what actually bounds the session.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	a.ledger.Record(r.Context(), audit.Entry{
		ActorID:      principal.ActorID,
		ActorDisplay: principal.Display,
		ActorOrigin:  principal.Origin,
		Action:       "auth.logout",
		ResourceType: "session",
	})
	w.WriteHeader(http.StatusNoContent)
}
