package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/metrics":                "/metrics",
		"/v1/nodes/abc":           "/v1/nodes/:id",
		"/v1/nodes/abc/expire":    "/v1/nodes/:id/expire",
		"/v1/nodes/bulk":          "/v1/nodes/bulk",
		"/v1/actors/u1/roles":     "/v1/actors/:id/roles",
		"/v1/audit":               "/v1/audit",
		"/v1/audit?limit=10":      "/v1/audit",
		"/v1/routes/r1/enable":    "/v1/routes/:id/enable",
		"/v1/users/someone":       "/v1/users/:id",
		"/v1/keys/preauth":        "/v1/keys/preauth",
		"/v1/keys/api/k1":         "/v1/keys/api/:id",
		"/v1/keys/api/k1/expire":  "/v1/keys/api/:id/expire",
		"/v1/keys/preauth/expire": "/v1/keys/preauth/expire",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
