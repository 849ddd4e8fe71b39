// Package httpapi is the HTTP surface of the admin control plane: routing,
// middleware, authentication, and the handlers that tie the role authority,
// guard, audit ledger, coordination-server operations, and bulk coordinator
// together.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meshadmin.org/internal/audit"
	"meshadmin.org/internal/bulk"
	"meshadmin.org/internal/coord"
	"meshadmin.org/internal/gateway"
	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/obs"
	"meshadmin.org/internal/rbac"
)

// ReadyProbe reports whether the service can take traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// SettingsStore persists control-plane settings. *pg.Store implements it.
type SettingsStore interface {
	GetSettings(ctx context.Context) (map[string]string, error)
	PutSettings(ctx context.Context, settings map[string]string) error
}

// Deps are the collaborators the HTTP layer is built over.
type Deps struct {
	Authority   *rbac.Authority
	Guard       *guard.Guard
	Ledger      *audit.Ledger
	Coord       *coord.Service
	Bulk        *bulk.Coordinator
	Signer      TokenSigner
	Settings    SettingsStore
	GroupToRole map[string]rbac.Role
	Ready       ReadyProbe
	Version     string

	RateLimitBurst     int
	RateLimitPerSecond int
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	authority   *rbac.Authority
	guard       *guard.Guard
	ledger      *audit.Ledger
	coord       *coord.Service
	bulk        *bulk.Coordinator
	signer      TokenSigner
	settings    SettingsStore
	groupToRole map[string]rbac.Role
	readyProbe  ReadyProbe
	version     string

	rateBurst     int
	ratePerSecond int
}

// New wires the routes. All collaborators are required.
func New(deps Deps) (*API, error) {
	switch {
	case deps.Authority == nil:
		return nil, errors.New("httpapi: authority is required")
	case deps.Guard == nil:
		return nil, errors.New("httpapi: guard is required")
	case deps.Ledger == nil:
		return nil, errors.New("httpapi: ledger is required")
	case deps.Coord == nil:
		return nil, errors.New("httpapi: coord service is required")
	case deps.Bulk == nil:
		return nil, errors.New("httpapi: bulk coordinator is required")
	case deps.Signer == nil:
		return nil, errors.New("httpapi: token signer is required")
	case deps.Settings == nil:
		return nil, errors.New("httpapi: settings store is required")
	}

	a := &API{
		mux:           http.NewServeMux(),
		authority:     deps.Authority,
		guard:         deps.Guard,
		ledger:        deps.Ledger,
		coord:         deps.Coord,
		bulk:          deps.Bulk,
		signer:        deps.Signer,
		settings:      deps.Settings,
		groupToRole:   deps.GroupToRole,
		readyProbe:    deps.Ready,
		version:       deps.Version,
		rateBurst:     deps.RateLimitBurst,
		ratePerSecond: deps.RateLimitPerSecond,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.HandleFunc("/v1/info", a.handleInfo)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	a.mux.HandleFunc("/v1/actors/", a.handleActorScoped)

	a.mux.HandleFunc("/v1/audit", a.handleAuditQuery)
	a.mux.HandleFunc("/v1/audit/recent", a.handleAuditRecent)

	a.mux.HandleFunc("/v1/nodes", a.handleNodes)
	a.mux.HandleFunc("/v1/nodes/", a.handleNodeScoped)

	a.mux.HandleFunc("/v1/routes", a.handleRoutes)
	a.mux.HandleFunc("/v1/routes/", a.handleRouteScoped)

	a.mux.HandleFunc("/v1/dns", a.handleDNS)

	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)

	a.mux.HandleFunc("/v1/keys/preauth", a.handlePreauthKeys)
	a.mux.HandleFunc("/v1/keys/preauth/expire", a.handlePreauthExpire)
	a.mux.HandleFunc("/v1/keys/api", a.handleAPIKeys)
	a.mux.HandleFunc("/v1/keys/api/", a.handleAPIKeyScoped)

	a.mux.HandleFunc("/v1/policy", a.handlePolicy)

	a.mux.HandleFunc("/v1/settings", a.handleSettings)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a, nil
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	if a.rateBurst > 0 && a.ratePerSecond > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- health / info ---

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "meshadmin-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "meshadmin-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("out of range")
	}
	return val, nil
}

// writeDomainError maps subsystem sentinel errors and gateway failure kinds
// to HTTP status codes. One mapping for the whole surface.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var gerr *gateway.Error
	switch {
	case errors.Is(err, guard.ErrUnauthorized),
		errors.Is(err, bulk.ErrUnauthorized),
		errors.Is(err, rbac.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, bulk.ErrInvalidRequest),
		errors.Is(err, rbac.ErrInvalidInput),
		errors.Is(err, rbac.ErrUnknownRole),
		errors.Is(err, audit.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, rbac.ErrNotRemovable),
		errors.Is(err, rbac.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &gerr):
		writeError(w, r, gatewayStatus(gerr.Kind), gerr.Message)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func gatewayStatus(kind gateway.Kind) int {
	switch kind {
	case gateway.KindTimeout:
		return http.StatusGatewayTimeout
	case gateway.KindConnectionError, gateway.KindInvalidResponse:
		return http.StatusBadGateway
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindRemoteRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
