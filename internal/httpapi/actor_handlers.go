package httpapi

import (
	"net/http"
	"strings"

	"meshadmin.org/internal/audit"
	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/rbac"
)

type resyncRequest struct {
	DirectoryGroups []string `json:"directory_groups"`
}

// handleActorScoped routes /v1/actors/{id}/roles, /v1/actors/{id}/roles/{role}
// and /v1/actors/{id}/resync.
func (a *API) handleActorScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/actors/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	actorID := parts[0]
	switch {
	case len(parts) == 2 && parts[1] == "roles":
		a.handleActorRoles(w, r, actorID)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleActorRole(w, r, actorID, parts[2])
	case len(parts) == 2 && parts[1] == "resync":
		a.handleActorResync(w, r, actorID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleActorRoles(w http.ResponseWriter, r *http.Request, actorID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
		return
	}
	roles, err := a.authority.EffectiveRoles(r.Context(), actorID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id": actorID,
		"roles":    roles,
	})
}

// handleActorRole grants (PUT) or revokes (DELETE) one override grant. The
// granter's own roles decide assignability, so an admin can never hand out
// owner no matter what the request says.
func (a *API) handleActorRole(w http.ResponseWriter, r *http.Request, actorID, roleName string) {
	role, err := rbac.ParseRole(roleName)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodPut:
		principal, held, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		grant, err := a.authority.Grant(r.Context(), held, actorID, role, rbac.SourceOverride)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.ledger.Record(r.Context(), audit.Entry{
			ActorID:      principal.ActorID,
			ActorDisplay: principal.Display,
			ActorOrigin:  principal.Origin,
			Action:       "role.grant",
			ResourceType: "actor",
			ResourceID:   actorID,
			Metadata: map[string]string{
				"role":   string(role),
				"source": string(rbac.SourceOverride),
			},
		})
		writeJSON(w, http.StatusOK, grant)

	case http.MethodDelete:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		if err := a.authority.Revoke(r.Context(), actorID, role); err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.ledger.Record(r.Context(), audit.Entry{
			ActorID:      principal.ActorID,
			ActorDisplay: principal.Display,
			ActorOrigin:  principal.Origin,
			Action:       "role.revoke",
			ResourceType: "actor",
			ResourceID:   actorID,
			Metadata:     map[string]string{"role": string(role)},
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleActorResync(w http.ResponseWriter, r *http.Request, actorID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
	if !ok {
		return
	}
	var req resyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.authority.Resync(r.Context(), actorID, req.DirectoryGroups, a.groupToRole); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.ledger.Record(r.Context(), audit.Entry{
		ActorID:      principal.ActorID,
		ActorDisplay: principal.Display,
		ActorOrigin:  principal.Origin,
		Action:       "role.resync",
		ResourceType: "actor",
		ResourceID:   actorID,
	})
	roles, err := a.authority.EffectiveRoles(r.Context(), actorID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id": actorID,
		"roles":    roles,
	})
}
