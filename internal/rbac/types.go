package rbac

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies which authority produced a grant. Directory grants are
// owned by the identity provider's group sync and are replaced wholesale on
// every resync; override grants are assigned inside this system and survive
// resync until explicitly revoked.
type Source string

const (
	SourceDirectory Source = "directory"
	SourceOverride  Source = "override"
)

// Valid reports whether the source is one of the two known authorities.
func (s Source) Valid() bool {
	return s == SourceDirectory || s == SourceOverride
}

// ParseSource normalizes and validates a grant source.
func ParseSource(raw string) (Source, error) {
	src := Source(strings.TrimSpace(strings.ToLower(raw)))
	if !src.Valid() {
		return "", fmt.Errorf("%w: unknown grant source %q", ErrInvalidInput, raw)
	}
	return src, nil
}

// Grant assigns one role to one actor from one source. At most one grant
// exists per (actor, role, source) triple; re-granting updates in place.
type Grant struct {
	ActorID   string    `json:"actor_id"`
	Role      Role      `json:"role"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
