package rbac

import "context"

// GrantStore describes persistence operations required by the role authority.
type GrantStore interface {
	// Upsert inserts the grant or refreshes its updated_at if the
	// (actor, role, source) triple already exists.
	Upsert(ctx context.Context, grant Grant) error
	// Delete removes one grant. Returns ErrNotFound when it does not exist.
	Delete(ctx context.Context, actorID string, role Role, source Source) error
	// ListByActor returns every grant held by the actor.
	ListByActor(ctx context.Context, actorID string) ([]Grant, error)
	// ReplaceDirectory atomically swaps the actor's directory grants for the
	// given roles. Readers of ListByActor must never observe the window
	// between delete and insert.
	ReplaceDirectory(ctx context.Context, actorID string, roles []Role) error
}
