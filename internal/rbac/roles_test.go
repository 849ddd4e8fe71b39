package rbac

import (
	"errors"
	"testing"
)

func TestMeetsMinimum(t *testing.T) {
	cases := []struct {
		name    string
		held    []Role
		minimum Role
		want    bool
	}{
		{"owner meets admin", []Role{RoleOwner}, RoleAdmin, true},
		{"admin meets admin", []Role{RoleAdmin}, RoleAdmin, true},
		{"auditor does not meet admin", []Role{RoleAuditor}, RoleAdmin, false},
		{"max of set decides", []Role{RoleUser, RoleOperator}, RoleOperator, true},
		{"empty set meets nothing", nil, RoleUser, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MeetsMinimum(tc.held, tc.minimum); got != tc.want {
				t.Fatalf("MeetsMinimum(%v, %s) = %v, want %v", tc.held, tc.minimum, got, tc.want)
			}
		})
	}
}

func TestHasAnyOf(t *testing.T) {
	held := []Role{RoleAuditor, RoleUser}
	if !HasAnyOf(held, []Role{RoleAdmin, RoleAuditor}) {
		t.Fatal("expected intersection")
	}
	if HasAnyOf(held, []Role{RoleAdmin, RoleOwner}) {
		t.Fatal("unexpected intersection")
	}
	if HasAnyOf(nil, []Role{RoleUser}) {
		t.Fatal("empty held set should not intersect")
	}
}

func TestAssignableRoles(t *testing.T) {
	if got := AssignableRoles([]Role{RoleOwner}); len(got) != len(AllRoles()) {
		t.Fatalf("owner should assign all roles, got %v", got)
	}
	adminAssignable := AssignableRoles([]Role{RoleAdmin})
	if HasAnyOf(adminAssignable, []Role{RoleOwner}) {
		t.Fatalf("admin must not assign owner: %v", adminAssignable)
	}
	if len(adminAssignable) != len(AllRoles())-1 {
		t.Fatalf("admin should assign everything but owner: %v", adminAssignable)
	}
	if got := AssignableRoles([]Role{RoleOperator, RoleAuditor, RoleUser}); got != nil {
		t.Fatalf("non-admin roles assign nothing, got %v", got)
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Admin ")
	if err != nil || role != RoleAdmin {
		t.Fatalf("ParseRole: role=%v err=%v", role, err)
	}
	if _, err := ParseRole("root"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestAllRolesOrderedByWeight(t *testing.T) {
	roles := AllRoles()
	for i := 1; i < len(roles); i++ {
		if roles[i-1].Weight() < roles[i].Weight() {
			t.Fatalf("roles not in descending weight order: %v", roles)
		}
	}
	if roles[0] != RoleOwner || roles[len(roles)-1] != RoleUser {
		t.Fatalf("unexpected ordering: %v", roles)
	}
}
