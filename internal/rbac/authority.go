package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Authority maintains the set of roles held by each actor, merged from the
// directory and override sources, and answers ordering and containment
// queries against it.
type Authority struct {
	store GrantStore
	now   func() time.Time
}

// NewAuthority constructs an Authority over the given grant store.
func NewAuthority(store GrantStore) (*Authority, error) {
	if store == nil {
		return nil, errors.New("rbac: grant store is required")
	}
	return &Authority{store: store, now: func() time.Time { return time.Now().UTC() }}, nil
}

// EffectiveRoles returns the union of the actor's grant roles from both
// sources, ordered by descending weight. No side effects.
func (a *Authority) EffectiveRoles(ctx context.Context, actorID string) ([]Role, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	grants, err := a.store.ListByActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	seen := make(map[Role]struct{}, len(grants))
	var roles []Role
	for _, g := range grants {
		if _, ok := seen[g.Role]; ok {
			continue
		}
		seen[g.Role] = struct{}{}
		roles = append(roles, g.Role)
	}
	SortByWeight(roles)
	return roles, nil
}

// Grant upserts one grant for the actor. The granter must be allowed to hand
// out the role per AssignableRoles; in particular only owners grant owner.
func (a *Authority) Grant(ctx context.Context, granterRoles []Role, actorID string, role Role, source Source) (Grant, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Grant{}, fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return Grant{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if !source.Valid() {
		return Grant{}, fmt.Errorf("%w: unknown grant source %q", ErrInvalidInput, source)
	}
	if !HasAnyOf(AssignableRoles(granterRoles), []Role{role}) {
		return Grant{}, fmt.Errorf("%w: cannot assign role %s", ErrForbidden, role)
	}
	now := a.now()
	grant := Grant{
		ActorID:   actorID,
		Role:      role,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.Upsert(ctx, grant); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// Revoke removes an override grant. Directory grants are only ever removed by
// Resync; attempting to revoke one here fails with ErrNotRemovable.
func (a *Authority) Revoke(ctx context.Context, actorID string, role Role) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	err := a.store.Delete(ctx, actorID, role, SourceOverride)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	// No override grant. Distinguish "held via directory" from plain absence
	// so callers can tell the operator why the removal is refused.
	grants, lerr := a.store.ListByActor(ctx, actorID)
	if lerr != nil {
		return lerr
	}
	for _, g := range grants {
		if g.Role == role && g.Source == SourceDirectory {
			return fmt.Errorf("%w: %s", ErrNotRemovable, role)
		}
	}
	return err
}

// Resync replaces all of the actor's directory grants with the roles implied
// by its current directory groups. Override grants are never touched. The
// swap is atomic: readers never observe the actor with zero roles in between.
func (a *Authority) Resync(ctx context.Context, actorID string, directoryGroups []string, groupToRole map[string]Role) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	seen := make(map[Role]struct{})
	var roles []Role
	for _, group := range directoryGroups {
		role, ok := groupToRole[strings.TrimSpace(group)]
		if !ok {
			continue
		}
		if !role.Valid() {
			return fmt.Errorf("%w: group %q maps to %q", ErrUnknownRole, group, role)
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return a.store.ReplaceDirectory(ctx, actorID, roles)
}
