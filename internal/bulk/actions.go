package bulk

import (
	"fmt"
	"strings"

	"meshadmin.org/internal/rbac"
)

// Action is one bulk-capable node operation.
type Action string

const (
	ActionDelete    Action = "delete"
	ActionExpire    Action = "expire"
	ActionMove      Action = "move"
	ActionTagUpdate Action = "tag-update"
)

// requiredRole is the fixed action-to-minimum-role mapping. The coordinator
// re-checks this per request even though the endpoint sits behind a coarser
// guard, because actions sharing the endpoint demand different roles.
var requiredRole = map[Action]rbac.Role{
	ActionDelete:    rbac.RoleAdmin,
	ActionExpire:    rbac.RoleOperator,
	ActionMove:      rbac.RoleAdmin,
	ActionTagUpdate: rbac.RoleOperator,
}

// ParseAction normalizes and validates an action name.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := requiredRole[action]; !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, raw)
	}
	return action, nil
}

// RequiredRole returns the minimum role the action demands.
func (a Action) RequiredRole() rbac.Role {
	return requiredRole[a]
}

// Params carries per-action parameters.
type Params struct {
	NewOwner string   `json:"new_owner,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// validate checks parameter shape before any target is touched. This is the
// only all-or-nothing check in a bulk request.
func (a Action) validate(params Params) error {
	switch a {
	case ActionMove:
		if strings.TrimSpace(params.NewOwner) == "" {
			return fmt.Errorf("%w: move requires new_owner", ErrInvalidRequest)
		}
	case ActionTagUpdate:
		if len(params.Tags) == 0 {
			return fmt.Errorf("%w: tag-update requires tags", ErrInvalidRequest)
		}
		for _, tag := range params.Tags {
			if strings.TrimSpace(tag) == "" {
				return fmt.Errorf("%w: empty tag", ErrInvalidRequest)
			}
		}
	}
	return nil
}
