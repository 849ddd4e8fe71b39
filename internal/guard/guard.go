// Package guard wraps operations with an authorization check against the
// role authority. Checks are deny-by-default: an operation behind a guard
// never runs unless the caller's live effective roles satisfy the declared
// requirement.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meshadmin.org/internal/rbac"
)

// ErrUnauthorized is returned when the caller lacks the required role. The
// wrapped operation was not attempted and nothing was audited.
var ErrUnauthorized = errors.New("guard: unauthorized")

// RoleSource resolves an actor's current effective roles.
type RoleSource interface {
	EffectiveRoles(ctx context.Context, actorID string) ([]rbac.Role, error)
}

// Requirement declares what a guarded operation demands: either a minimum
// role in the hierarchy or membership in an explicit role set.
type Requirement struct {
	minimum rbac.Role
	anyOf   []rbac.Role
}

// Require demands a minimum role by weight.
func Require(minimum rbac.Role) Requirement {
	return Requirement{minimum: minimum}
}

// RequireAny demands at least one of the enumerated roles, ignoring weight.
func RequireAny(roles ...rbac.Role) Requirement {
	return Requirement{anyOf: roles}
}

// Satisfied evaluates the requirement against a held role set.
func (r Requirement) Satisfied(held []rbac.Role) bool {
	if len(r.anyOf) > 0 {
		return rbac.HasAnyOf(held, r.anyOf)
	}
	if r.minimum != "" {
		return rbac.MeetsMinimum(held, r.minimum)
	}
	// An empty requirement authorizes nothing.
	return false
}

func (r Requirement) String() string {
	if len(r.anyOf) > 0 {
		names := make([]string, len(r.anyOf))
		for i, role := range r.anyOf {
			names[i] = string(role)
		}
		return "any of " + strings.Join(names, ", ")
	}
	return "at least " + string(r.minimum)
}

// Guard is stateless; its only I/O is the role lookup.
type Guard struct {
	roles RoleSource
}

// New constructs a Guard over the given role source.
func New(roles RoleSource) (*Guard, error) {
	if roles == nil {
		return nil, errors.New("guard: role source is required")
	}
	return &Guard{roles: roles}, nil
}

// Authorize resolves the caller's effective roles and checks them against the
// requirement. On success it returns the held roles so callers can make
// further per-action decisions without a second lookup.
func (g *Guard) Authorize(ctx context.Context, actorID string, req Requirement) ([]rbac.Role, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrUnauthorized
	}
	held, err := g.roles.EffectiveRoles(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("guard: resolve roles: %w", err)
	}
	if !req.Satisfied(held) {
		return nil, fmt.Errorf("%w: requires %s", ErrUnauthorized, req)
	}
	return held, nil
}

// Run executes op only if the caller satisfies the requirement. On denial the
// operation never runs.
func (g *Guard) Run(ctx context.Context, actorID string, req Requirement, op func(ctx context.Context) error) error {
	if _, err := g.Authorize(ctx, actorID, req); err != nil {
		return err
	}
	return op(ctx)
}
