package rbac

import "errors"

var (
	ErrInvalidInput = errors.New("rbac: invalid input")
	ErrUnknownRole  = errors.New("rbac: unknown role")
	ErrForbidden    = errors.New("rbac: forbidden")
	ErrNotFound     = errors.New("rbac: not found")
	ErrNotRemovable = errors.New("rbac: directory grants are removed only by resync")
	ErrConflict     = errors.New("rbac: conflict")
)
