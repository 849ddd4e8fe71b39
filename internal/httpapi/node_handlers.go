package httpapi

import (
	"net/http"
	"strings"

	"meshadmin.org/internal/auth"
	"meshadmin.org/internal/bulk"
	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/rbac"
)

type bulkRequest struct {
	Action  string     `json:"action"`
	Targets []string   `json:"targets"`
	Params  bulkParams `json:"params"`
}

type bulkParams struct {
	NewOwner string   `json:"new_owner,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type registerNodeRequest struct {
	User string `json:"user"`
	Key  string `json:"key"`
}

type renameNodeRequest struct {
	Name string `json:"name"`
}

type moveNodeRequest struct {
	User string `json:"user"`
}

type tagNodeRequest struct {
	Tags []string `json:"tags"`
}

func (a *API) handleNodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
			return
		}
		nodes, err := a.coord.Nodes.List(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})

	case http.MethodPost:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
		if !ok {
			return
		}
		var req registerNodeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.User) == "" || strings.TrimSpace(req.Key) == "" {
			writeError(w, r, http.StatusBadRequest, "user and key are required")
			return
		}
		node, err := a.coord.Nodes.Register(r.Context(), req.User, req.Key)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditNode(r, principal, "node.create", node.ID, map[string]string{"user": req.User})
		writeJSON(w, http.StatusCreated, node)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleNodeScoped routes /v1/nodes/bulk, /v1/nodes/{id} and
// /v1/nodes/{id}/{action}.
func (a *API) handleNodeScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/nodes/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if parts[0] == "bulk" && len(parts) == 1 {
		a.handleNodeBulk(w, r)
		return
	}
	nodeID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleNode(w, r, nodeID)
	case len(parts) == 2 && parts[1] == "rename":
		a.handleNodeRename(w, r, nodeID)
	case len(parts) == 2 && parts[1] == "expire":
		a.handleNodeExpire(w, r, nodeID)
	case len(parts) == 2 && parts[1] == "tags":
		a.handleNodeTags(w, r, nodeID)
	case len(parts) == 2 && parts[1] == "move":
		a.handleNodeMove(w, r, nodeID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// handleNodeBulk passes a coarse operator gate here; the coordinator re-checks
// the action's own required role before touching any target.
func (a *API) handleNodeBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, held, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
	if !ok {
		return
	}
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action, err := bulk.ParseAction(req.Action)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := a.bulk.Execute(r.Context(), bulk.Caller{
		ActorID: principal.ActorID,
		Display: principal.Display,
		Origin:  principal.Origin,
		Roles:   held,
	}, bulk.Request{
		Action:  action,
		Targets: req.Targets,
		Params: bulk.Params{
			NewOwner: req.Params.NewOwner,
			Tags:     req.Params.Tags,
		},
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	// Partial or even total target failure is still a 200: the outcome is in
	// the per-target breakdown.
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleNode(w http.ResponseWriter, r *http.Request, nodeID string) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
			return
		}
		node, err := a.coord.Nodes.Get(r.Context(), nodeID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, node)

	case http.MethodDelete:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		if err := a.coord.Nodes.Delete(r.Context(), nodeID); err != nil {
			// Destructive actions audit their failures too.
			a.auditNode(r, principal, "node.delete", nodeID, map[string]string{"outcome": "failed"})
			writeDomainError(w, r, err)
			return
		}
		a.auditNode(r, principal, "node.delete", nodeID, nil)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) handleNodeRename(w http.ResponseWriter, r *http.Request, nodeID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
	if !ok {
		return
	}
	var req renameNodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	node, err := a.coord.Nodes.Rename(r.Context(), nodeID, req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditNode(r, principal, "node.rename", nodeID, map[string]string{"name": req.Name})
	writeJSON(w, http.StatusOK, node)
}

func (a *API) handleNodeExpire(w http.ResponseWriter, r *http.Request, nodeID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
	if !ok {
		return
	}
	if err := a.coord.Nodes.Expire(r.Context(), nodeID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditNode(r, principal, "node.expire", nodeID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleNodeTags(w http.ResponseWriter, r *http.Request, nodeID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleOperator))
	if !ok {
		return
	}
	var req tagNodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	node, err := a.coord.Nodes.SetTags(r.Context(), nodeID, req.Tags)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditNode(r, principal, "node.tags.update", nodeID, map[string]string{
		"tags": strings.Join(req.Tags, ","),
	})
	writeJSON(w, http.StatusOK, node)
}

func (a *API) handleNodeMove(w http.ResponseWriter, r *http.Request, nodeID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
	if !ok {
		return
	}
	var req moveNodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.User) == "" {
		writeError(w, r, http.StatusBadRequest, "user is required")
		return
	}
	node, err := a.coord.Nodes.Move(r.Context(), nodeID, req.User)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditNode(r, principal, "node.move", nodeID, map[string]string{"user": req.User})
	writeJSON(w, http.StatusOK, node)
}

func (a *API) auditNode(r *http.Request, principal auth.Principal, action, nodeID string, meta map[string]string) {
	a.auditMesh(r, principal, action, "node", nodeID, meta)
}
