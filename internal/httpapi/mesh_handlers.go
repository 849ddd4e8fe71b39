package httpapi

import (
	"net/http"
	"strings"
	"time"

	"meshadmin.org/internal/audit"
	"meshadmin.org/internal/auth"
	"meshadmin.org/internal/coord"
	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/rbac"
)

type createUserRequest struct {
	Name string `json:"name"`
}

type renameUserRequest struct {
	Name string `json:"name"`
}

type createPreauthKeyRequest struct {
	User      string    `json:"user"`
	Reusable  bool      `json:"reusable"`
	Ephemeral bool      `json:"ephemeral"`
	Expiry    time.Time `json:"expiration"`
}

type expirePreauthKeyRequest struct {
	User string `json:"user"`
	Key  string `json:"key"`
}

type createAPIKeyRequest struct {
	Expiry time.Time `json:"expiration"`
}

type updatePolicyRequest struct {
	Policy string `json:"policy"`
}

// --- routes ---

func (a *API) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
		return
	}
	routes, err := a.coord.Routes.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

// handleRouteScoped routes /v1/routes/{id} and /v1/routes/{id}/{enable,disable}.
func (a *API) handleRouteScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/routes/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	routeID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		if err := a.coord.Routes.Delete(r.Context(), routeID); err != nil {
			a.auditMesh(r, principal, "route.delete", "route", routeID, map[string]string{"outcome": "failed"})
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "route.delete", "route", routeID, nil)
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && (parts[1] == "enable" || parts[1] == "disable"):
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
		if !ok {
			return
		}
		var err error
		if parts[1] == "enable" {
			err = a.coord.Routes.Enable(r.Context(), routeID)
		} else {
			err = a.coord.Routes.Disable(r.Context(), routeID)
		}
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "route."+parts[1], "route", routeID, nil)
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 1:
		methodNotAllowed(w, r, http.MethodDelete)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// --- dns ---

func (a *API) handleDNS(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
			return
		}
		cfg, err := a.coord.DNS.Get(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPut:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		var req coord.DNSConfig
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		cfg, err := a.coord.DNS.Update(r.Context(), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "dns.update", "dns", "", map[string]string{
			"nameservers": strings.Join(req.Nameservers, ","),
		})
		writeJSON(w, http.StatusOK, cfg)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// --- users ---

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
			return
		}
		users, err := a.coord.Users.List(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})

	case http.MethodPost:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, r, http.StatusBadRequest, "name is required")
			return
		}
		user, err := a.coord.Users.Create(r.Context(), req.Name)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "user.create", "user", user.Name, nil)
		writeJSON(w, http.StatusCreated, user)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserScoped routes /v1/users/{name} and /v1/users/{name}/rename.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	name := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		if err := a.coord.Users.Delete(r.Context(), name); err != nil {
			a.auditMesh(r, principal, "user.delete", "user", name, map[string]string{"outcome": "failed"})
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "user.delete", "user", name, nil)
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "rename":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		var req renameUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, r, http.StatusBadRequest, "name is required")
			return
		}
		user, err := a.coord.Users.Rename(r.Context(), name, req.Name)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "user.rename", "user", name, map[string]string{"name": req.Name})
		writeJSON(w, http.StatusOK, user)

	case len(parts) == 1:
		methodNotAllowed(w, r, http.MethodDelete)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// --- keys ---

func (a *API) handlePreauthKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
			return
		}
		keys, err := a.coord.Keys.ListPreauth(r.Context(), r.URL.Query().Get("user"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"preauth_keys": keys})

	case http.MethodPost:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
		if !ok {
			return
		}
		var req createPreauthKeyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.User) == "" {
			writeError(w, r, http.StatusBadRequest, "user is required")
			return
		}
		key, err := a.coord.Keys.CreatePreauth(r.Context(), req.User, req.Reusable, req.Ephemeral, req.Expiry)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "preauthkey.create", "preauth_key", key.ID, map[string]string{
			"user": req.User,
		})
		writeJSON(w, http.StatusCreated, key)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePreauthExpire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
	if !ok {
		return
	}
	var req expirePreauthKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.User) == "" || strings.TrimSpace(req.Key) == "" {
		writeError(w, r, http.StatusBadRequest, "user and key are required")
		return
	}
	if err := a.coord.Keys.ExpirePreauth(r.Context(), req.User, req.Key); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditMesh(r, principal, "preauthkey.expire", "preauth_key", "", map[string]string{
		"user": req.User,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAPIKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin)); !ok {
			return
		}
		keys, err := a.coord.Keys.ListAPIKeys(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"api_keys": keys})

	case http.MethodPost:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		var req createAPIKeyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		key, err := a.coord.Keys.CreateAPIKey(r.Context(), req.Expiry)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "apikey.create", "api_key", "", nil)
		// The secret is returned exactly once; only the prefix is stored.
		writeJSON(w, http.StatusCreated, map[string]any{"api_key": key})

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleAPIKeyScoped routes /v1/keys/api/{prefix} and
// /v1/keys/api/{prefix}/expire.
func (a *API) handleAPIKeyScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/keys/api/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	prefix := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		if err := a.coord.Keys.DeleteAPIKey(r.Context(), prefix); err != nil {
			a.auditMesh(r, principal, "apikey.delete", "api_key", prefix, map[string]string{"outcome": "failed"})
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "apikey.delete", "api_key", prefix, nil)
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "expire":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		if err := a.coord.Keys.ExpireAPIKey(r.Context(), prefix); err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "apikey.expire", "api_key", prefix, nil)
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 1:
		methodNotAllowed(w, r, http.MethodDelete)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// --- policy ---

func (a *API) handlePolicy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
			return
		}
		policy, err := a.coord.Policy.Get(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"policy": policy})

	case http.MethodPut:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		var req updatePolicyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Policy) == "" {
			writeError(w, r, http.StatusBadRequest, "policy is required")
			return
		}
		if err := a.coord.Policy.Update(r.Context(), req.Policy); err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditMesh(r, principal, "policy.update", "policy", "", nil)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) auditMesh(r *http.Request, principal auth.Principal, action, resourceType, resourceID string, meta map[string]string) {
	a.ledger.Record(r.Context(), audit.Entry{
		ActorID:      principal.ActorID,
		ActorDisplay: principal.Display,
		ActorOrigin:  principal.Origin,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     meta,
	})
}
