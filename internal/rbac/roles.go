package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a named permission level in a fixed, totally ordered hierarchy.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleAuditor  Role = "auditor"
	RoleUser     Role = "user"
)

var roleWeights = map[Role]int{
	RoleOwner:    100,
	RoleAdmin:    80,
	RoleOperator: 60,
	RoleAuditor:  40,
	RoleUser:     20,
}

// ParseRole normalizes and validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Valid reports whether the role belongs to the fixed set.
func (r Role) Valid() bool {
	_, ok := roleWeights[r]
	return ok
}

// Weight returns the role's position in the hierarchy. Unknown roles weigh zero.
func (r Role) Weight() int {
	return roleWeights[r]
}

// AllRoles returns every role ordered by descending weight.
func AllRoles() []Role {
	roles := make([]Role, 0, len(roleWeights))
	for r := range roleWeights {
		roles = append(roles, r)
	}
	SortByWeight(roles)
	return roles
}

// SortByWeight orders roles by descending weight in place. Ties (duplicate
// roles) keep a stable name order so output is deterministic.
func SortByWeight(roles []Role) {
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Weight() != roles[j].Weight() {
			return roles[i].Weight() > roles[j].Weight()
		}
		return roles[i] < roles[j]
	})
}

// MeetsMinimum reports whether any held role weighs at least the minimum.
func MeetsMinimum(held []Role, minimum Role) bool {
	for _, r := range held {
		if r.Weight() >= minimum.Weight() {
			return true
		}
	}
	return false
}

// HasAnyOf reports whether the held set intersects the required set.
func HasAnyOf(held []Role, required []Role) bool {
	for _, r := range held {
		for _, want := range required {
			if r == want {
				return true
			}
		}
	}
	return false
}

// AssignableRoles returns the roles a granter may hand out: owners may assign
// anything, admins anything but owner, everyone else nothing.
func AssignableRoles(granter []Role) []Role {
	switch {
	case HasAnyOf(granter, []Role{RoleOwner}):
		return AllRoles()
	case HasAnyOf(granter, []Role{RoleAdmin}):
		var out []Role
		for _, r := range AllRoles() {
			if r != RoleOwner {
				out = append(out, r)
			}
		}
		return out
	default:
		return nil
	}
}
