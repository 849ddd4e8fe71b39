package httpapi

import (
	"net/http"
	"sort"
	"strings"

	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/rbac"
)

type updateSettingsRequest struct {
	Settings map[string]string `json:"settings"`
}

// handleSettings serves the control plane's own key/value settings. These
// live in Postgres, not on the coordination server.
func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAuditor)); !ok {
			return
		}
		settings, err := a.settings.GetSettings(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": settings})

	case http.MethodPut:
		principal, _, ok := a.authorize(w, r, guard.Require(rbac.RoleAdmin))
		if !ok {
			return
		}
		var req updateSettingsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.Settings) == 0 {
			writeError(w, r, http.StatusBadRequest, "settings are required")
			return
		}
		for key := range req.Settings {
			if strings.TrimSpace(key) == "" {
				writeError(w, r, http.StatusBadRequest, "setting keys must not be blank")
				return
			}
		}
		if err := a.settings.PutSettings(r.Context(), req.Settings); err != nil {
			writeDomainError(w, r, err)
			return
		}
		keys := make([]string, 0, len(req.Settings))
		for key := range req.Settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		a.auditMesh(r, principal, "setting.update", "setting", "", map[string]string{
			"keys": strings.Join(keys, ","),
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}
