package guard

import (
	"context"
	"errors"
	"testing"

	"meshadmin.org/internal/rbac"
)

type staticRoles map[string][]rbac.Role

func (s staticRoles) EffectiveRoles(_ context.Context, actorID string) ([]rbac.Role, error) {
	return s[actorID], nil
}

type failingRoles struct{ err error }

func (f failingRoles) EffectiveRoles(context.Context, string) ([]rbac.Role, error) {
	return nil, f.err
}

func TestAuthorize(t *testing.T) {
	g, err := New(staticRoles{
		"op":  {rbac.RoleOperator},
		"aud": {rbac.RoleAuditor},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name  string
		actor string
		req   Requirement
		deny  bool
	}{
		{"operator meets operator minimum", "op", Require(rbac.RoleOperator), false},
		{"operator denied admin minimum", "op", Require(rbac.RoleAdmin), true},
		{"auditor allowed by explicit set", "aud", RequireAny(rbac.RoleAuditor, rbac.RoleAdmin), false},
		{"auditor denied outside explicit set", "aud", RequireAny(rbac.RoleAdmin, rbac.RoleOwner), true},
		{"unknown actor denied", "ghost", Require(rbac.RoleUser), true},
		{"empty actor denied", "", Require(rbac.RoleUser), true},
		{"empty requirement denies everyone", "op", Requirement{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Authorize(ctx, tc.actor, tc.req)
			if tc.deny && !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
			if !tc.deny && err != nil {
				t.Fatalf("unexpected denial: %v", err)
			}
		})
	}
}

func TestRunNeverExecutesOnDenial(t *testing.T) {
	g, err := New(staticRoles{"aud": {rbac.RoleAuditor}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ran := false
	err = g.Run(context.Background(), "aud", Require(rbac.RoleAdmin), func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if ran {
		t.Fatal("operation ran despite denial")
	}

	if err := g.Run(context.Background(), "aud", Require(rbac.RoleAuditor), func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Fatal("operation did not run after authorization")
	}
}

func TestAuthorizeSurfacesLookupFailure(t *testing.T) {
	lookupErr := errors.New("store down")
	g, err := New(failingRoles{err: lookupErr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.Authorize(context.Background(), "op", Require(rbac.RoleUser)); !errors.Is(err, lookupErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}
