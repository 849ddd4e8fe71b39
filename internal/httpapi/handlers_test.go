package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"meshadmin.org/internal/audit"
	"meshadmin.org/internal/auth"
	"meshadmin.org/internal/bulk"
	"meshadmin.org/internal/coord"
	"meshadmin.org/internal/gateway"
	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/rbac"
)

// --- stubs ---

type memGrantStore struct {
	mu     sync.Mutex
	grants map[string]rbac.Grant
}

func newMemGrantStore() *memGrantStore {
	return &memGrantStore{grants: make(map[string]rbac.Grant)}
}

func grantKey(actorID string, role rbac.Role, source rbac.Source) string {
	return actorID + "|" + string(role) + "|" + string(source)
}

func (s *memGrantStore) Upsert(_ context.Context, grant rbac.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey(grant.ActorID, grant.Role, grant.Source)] = grant
	return nil
}

func (s *memGrantStore) Delete(_ context.Context, actorID string, role rbac.Role, source rbac.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey(actorID, role, source)
	if _, ok := s.grants[key]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.grants, key)
	return nil
}

func (s *memGrantStore) ListByActor(_ context.Context, actorID string) ([]rbac.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rbac.Grant
	for _, g := range s.grants {
		if g.ActorID == actorID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memGrantStore) ReplaceDirectory(_ context.Context, actorID string, roles []rbac.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, g := range s.grants {
		if g.ActorID == actorID && g.Source == rbac.SourceDirectory {
			delete(s.grants, key)
		}
	}
	now := time.Now().UTC()
	for _, role := range roles {
		g := rbac.Grant{ActorID: actorID, Role: role, Source: rbac.SourceDirectory, CreatedAt: now, UpdatedAt: now}
		s.grants[grantKey(actorID, role, rbac.SourceDirectory)] = g
	}
	return nil
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *memAuditStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAuditStore) Query(_ context.Context, filter audit.Filter, limit, offset int) ([]audit.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *memAuditStore) byAction(action string) []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type memSettingsStore struct {
	mu       sync.Mutex
	settings map[string]string
}

func (s *memSettingsStore) GetSettings(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *memSettingsStore) PutSettings(_ context.Context, settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = make(map[string]string)
	}
	for k, v := range settings {
		s.settings[k] = v
	}
	return nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []string
	handler func(method, path string, body, out any) error
}

func (f *fakeExecutor) Execute(_ context.Context, method, path string, body, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, method+" "+path)
	f.mu.Unlock()
	if f.handler != nil {
		return f.handler(method, path, body, out)
	}
	return nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --- harness ---

type testEnv struct {
	handler    http.Handler
	grants     *memGrantStore
	auditStore *memAuditStore
	settings   *memSettingsStore
	exec       *fakeExecutor
	signer     *auth.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	grants := newMemGrantStore()
	auditStore := &memAuditStore{}
	settings := &memSettingsStore{}
	exec := &fakeExecutor{}

	authority, err := rbac.NewAuthority(grants)
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	g, err := guard.New(authority)
	if err != nil {
		t.Fatalf("guard.New: %v", err)
	}
	ledger, err := audit.NewLedger(auditStore)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	svc, err := coord.NewService(exec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	bulkCoord, err := bulk.NewCoordinator(svc.Nodes, ledger)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	signer, err := auth.NewSigner("test-secret", "meshadmin-test", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	api, err := New(Deps{
		Authority:   authority,
		Guard:       g,
		Ledger:      ledger,
		Coord:       svc,
		Bulk:        bulkCoord,
		Signer:      signer,
		Settings:    settings,
		GroupToRole: map[string]rbac.Role{"netops": rbac.RoleOperator},
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &testEnv{
		handler:    api.Handler(),
		grants:     grants,
		auditStore: auditStore,
		settings:   settings,
		exec:       exec,
		signer:     signer,
	}
}

func (e *testEnv) grantRole(t *testing.T, actorID string, role rbac.Role) {
	t.Helper()
	now := time.Now().UTC()
	err := e.grants.Upsert(context.Background(), rbac.Grant{
		ActorID:   actorID,
		Role:      role,
		Source:    rbac.SourceOverride,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed grant: %v", err)
	}
}

func (e *testEnv) token(t *testing.T, actorID string) string {
	t.Helper()
	token, _, err := e.signer.Generate(actorID, "Test User")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// --- tests ---

func TestHealthEndpointsArePublic(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/nodes", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/nodes", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginIssuesTokenAndResyncsDirectory(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{
		ActorID:         "u1",
		Display:         "Net Operator",
		DirectoryGroups: []string{"netops", "unmapped-group"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("expected a session token")
	}
	if len(resp.Roles) != 1 || resp.Roles[0] != rbac.RoleOperator {
		t.Fatalf("unexpected roles: %v", resp.Roles)
	}

	// The issued token must authenticate follow-up requests.
	rec = env.do(t, http.MethodGet, "/v1/nodes", resp.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token did not authenticate: %d", rec.Code)
	}

	if got := env.auditStore.byAction("auth.login"); len(got) != 1 {
		t.Fatalf("expected one auth.login entry, got %d", len(got))
	}
}

func TestNodeListRequiresAuditorRole(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "plain", rbac.RoleUser)
	env.grantRole(t, "aud", rbac.RoleAuditor)

	rec := env.do(t, http.MethodGet, "/v1/nodes", env.token(t, "plain"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user role: expected 403, got %d", rec.Code)
	}
	if env.exec.callCount() != 0 {
		t.Fatal("gateway must not be called on denial")
	}

	rec = env.do(t, http.MethodGet, "/v1/nodes", env.token(t, "aud"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("auditor role: expected 200, got %d", rec.Code)
	}
}

func TestNodeDeleteRequiresAdminAndAudits(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "op", rbac.RoleOperator)
	env.grantRole(t, "adm", rbac.RoleAdmin)

	rec := env.do(t, http.MethodDelete, "/v1/nodes/n1", env.token(t, "op"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("operator: expected 403, got %d", rec.Code)
	}
	if env.exec.callCount() != 0 {
		t.Fatal("gateway must not be called on denial")
	}
	if got := env.auditStore.byAction("node.delete"); len(got) != 0 {
		t.Fatal("denied request must not be audited")
	}

	rec = env.do(t, http.MethodDelete, "/v1/nodes/n1", env.token(t, "adm"), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.exec.calls[0] != "DELETE /api/v1/node/n1" {
		t.Fatalf("unexpected gateway call: %s", env.exec.calls[0])
	}
	got := env.auditStore.byAction("node.delete")
	if len(got) != 1 || got[0].ActorID != "adm" || got[0].ResourceID != "n1" {
		t.Fatalf("unexpected audit entries: %+v", got)
	}
}

func TestBulkPartialFailureReturns200(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)
	env.exec.handler = func(method, path string, body, out any) error {
		if strings.Contains(path, "/node/n2") {
			return &gateway.Error{Kind: gateway.KindRemoteRejected, Message: "node is locked"}
		}
		return nil
	}

	rec := env.do(t, http.MethodPost, "/v1/nodes/bulk", env.token(t, "adm"), bulkRequest{
		Action:  "delete",
		Targets: []string{"n1", "n2", "n3"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result bulk.Result
	decodeBody(t, rec, &result)
	if result.Summary.Total != 3 || result.Summary.Succeeded != 2 || result.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	for i, want := range []string{"n1", "n2", "n3"} {
		if result.PerTarget[i].TargetID != want {
			t.Fatalf("per-target order broken at %d: %+v", i, result.PerTarget)
		}
	}
	if result.PerTarget[1].Success || result.PerTarget[1].Error == "" {
		t.Fatalf("n2 should have failed with a message: %+v", result.PerTarget[1])
	}

	batch := env.auditStore.byAction("node.delete.bulk")
	if len(batch) != 1 {
		t.Fatalf("expected exactly one batch audit entry, got %d", len(batch))
	}
	if batch[0].Metadata["failed"] != "1" || batch[0].Metadata["targets"] != "3" {
		t.Fatalf("unexpected batch metadata: %v", batch[0].Metadata)
	}
}

func TestBulkUnknownActionIs400(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/v1/nodes/bulk", env.token(t, "adm"), bulkRequest{
		Action:  "reboot",
		Targets: []string{"n1"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.exec.callCount() != 0 {
		t.Fatal("no target may be attempted for a malformed request")
	}
}

func TestBulkActionRoleRecheck(t *testing.T) {
	// Operator passes the endpoint's coarse gate but delete itself needs admin.
	env := newTestEnv(t)
	env.grantRole(t, "op", rbac.RoleOperator)

	rec := env.do(t, http.MethodPost, "/v1/nodes/bulk", env.token(t, "op"), bulkRequest{
		Action:  "delete",
		Targets: []string{"n1"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.exec.callCount() != 0 {
		t.Fatal("no target may be attempted on denial")
	}
}

func TestRoleGrantAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)
	admToken := env.token(t, "adm")

	rec := env.do(t, http.MethodPut, "/v1/actors/u2/roles/operator", admToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("grant: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.auditStore.byAction("role.grant"); len(got) != 1 {
		t.Fatalf("expected one role.grant entry, got %d", len(got))
	}

	rec = env.do(t, http.MethodGet, "/v1/actors/u2/roles", admToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list roles: expected 200, got %d", rec.Code)
	}
	var listed struct {
		Roles []rbac.Role `json:"roles"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Roles) != 1 || listed.Roles[0] != rbac.RoleOperator {
		t.Fatalf("unexpected roles: %v", listed.Roles)
	}

	// Admin cannot hand out owner.
	rec = env.do(t, http.MethodPut, "/v1/actors/u2/roles/owner", admToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("owner grant by admin: expected 403, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/v1/actors/u2/roles/operator", admToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", rec.Code)
	}

	// Revoking again is a 404: nothing left to remove.
	rec = env.do(t, http.MethodDelete, "/v1/actors/u2/roles/operator", admToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("revoke missing: expected 404, got %d", rec.Code)
	}
}

func TestRevokeDirectoryGrantIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)
	if err := env.grants.ReplaceDirectory(context.Background(), "u2", []rbac.Role{rbac.RoleAuditor}); err != nil {
		t.Fatalf("seed directory grant: %v", err)
	}

	rec := env.do(t, http.MethodDelete, "/v1/actors/u2/roles/auditor", env.token(t, "adm"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuditQueryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "aud", rbac.RoleAuditor)
	env.grantRole(t, "plain", rbac.RoleUser)
	env.grantRole(t, "adm", rbac.RoleAdmin)

	// Generate some entries through the surface itself.
	admToken := env.token(t, "adm")
	env.do(t, http.MethodDelete, "/v1/nodes/n1", admToken, nil)
	env.do(t, http.MethodDelete, "/v1/nodes/n2", admToken, nil)

	rec := env.do(t, http.MethodGet, "/v1/audit?action=node.delete", env.token(t, "aud"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page audit.QueryResult
	decodeBody(t, rec, &page)
	if page.Total != 2 || len(page.Entries) != 2 {
		t.Fatalf("unexpected page: total=%d entries=%d", page.Total, len(page.Entries))
	}

	rec = env.do(t, http.MethodGet, "/v1/audit", env.token(t, "plain"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user role: expected 403, got %d", rec.Code)
	}
}

func TestGatewayFailureStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		kind gateway.Kind
		want int
	}{
		{"timeout", gateway.KindTimeout, http.StatusGatewayTimeout},
		{"connection", gateway.KindConnectionError, http.StatusBadGateway},
		{"invalid response", gateway.KindInvalidResponse, http.StatusBadGateway},
		{"not found", gateway.KindNotFound, http.StatusNotFound},
		{"remote rejected", gateway.KindRemoteRejected, http.StatusUnprocessableEntity},
		{"internal", gateway.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.grantRole(t, "aud", rbac.RoleAuditor)
			env.exec.handler = func(method, path string, body, out any) error {
				return &gateway.Error{Kind: tc.kind, Message: "remote says no"}
			}
			rec := env.do(t, http.MethodGet, "/v1/nodes", env.token(t, "aud"), nil)
			if rec.Code != tc.want {
				t.Fatalf("kind %s: expected %d, got %d", tc.kind, tc.want, rec.Code)
			}
		})
	}
}

func TestPolicyUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)

	rec := env.do(t, http.MethodPut, "/v1/policy", env.token(t, "adm"), updatePolicyRequest{
		Policy: `{"acls":[]}`,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.exec.calls[0] != "PUT /api/v1/policy" {
		t.Fatalf("unexpected gateway call: %s", env.exec.calls[0])
	}
	if got := env.auditStore.byAction("policy.update"); len(got) != 1 {
		t.Fatalf("expected one policy.update entry, got %d", len(got))
	}
}

func TestSettingsUpdateRequiresAdminAndAudits(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "op", rbac.RoleOperator)
	env.grantRole(t, "adm", rbac.RoleAdmin)

	body := updateSettingsRequest{Settings: map[string]string{"node_expiry_days": "90"}}
	rec := env.do(t, http.MethodPut, "/v1/settings", env.token(t, "op"), body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("operator: expected 403, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/v1/settings", env.token(t, "adm"), body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	got := env.auditStore.byAction("setting.update")
	if len(got) != 1 || got[0].Metadata["keys"] != "node_expiry_days" {
		t.Fatalf("unexpected audit entries: %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/settings", env.token(t, "op"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", rec.Code)
	}
	var page struct {
		Settings map[string]string `json:"settings"`
	}
	decodeBody(t, rec, &page)
	if page.Settings["node_expiry_days"] != "90" {
		t.Fatalf("unexpected settings: %v", page.Settings)
	}
}

func TestSettingsUpdateRejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)

	rec := env.do(t, http.MethodPut, "/v1/settings", env.token(t, "adm"), updateSettingsRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestNodeRegister(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "op", rbac.RoleOperator)

	rec := env.do(t, http.MethodPost, "/v1/nodes", env.token(t, "op"), registerNodeRequest{
		User: "alice",
		Key:  "nodekey:abc123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	want := "POST /api/v1/node/register?user=alice&key=nodekey%3Aabc123"
	if env.exec.calls[0] != want {
		t.Fatalf("unexpected gateway call: %s", env.exec.calls[0])
	}
	if got := env.auditStore.byAction("node.create"); len(got) != 1 {
		t.Fatalf("expected one node.create entry, got %d", len(got))
	}

	rec = env.do(t, http.MethodPost, "/v1/nodes", env.token(t, "op"), registerNodeRequest{User: "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400, got %d", rec.Code)
	}
}

func TestFailedDeleteIsAudited(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)
	env.exec.handler = func(method, path string, body, out any) error {
		return &gateway.Error{Kind: gateway.KindNotFound, Message: "node not found"}
	}

	rec := env.do(t, http.MethodDelete, "/v1/nodes/ghost", env.token(t, "adm"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	got := env.auditStore.byAction("node.delete")
	if len(got) != 1 || got[0].Metadata["outcome"] != "failed" {
		t.Fatalf("expected one failed-outcome entry, got %+v", got)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)
	env.grantRole(t, "adm", rbac.RoleAdmin)
	rec := env.do(t, http.MethodGet, "/v1/nope", env.token(t, "adm"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRequestIDEchoedOnErrors(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/nodes", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") != "rid-123" {
		t.Fatalf("request id not echoed: %q", rec.Header().Get("X-Request-ID"))
	}
	var body struct {
		RequestID string `json:"request_id"`
	}
	decodeBody(t, rec, &body)
	if body.RequestID != "rid-123" {
		t.Fatalf("request id not in error payload: %q", body.RequestID)
	}
}
