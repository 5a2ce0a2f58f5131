package registry

import "errors"

// ErrNotFound indicates the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ConflictError represents an invariant violation: duplicate name, ambiguous
// lookup, or a state write that would contradict a parent's state (HTTP 409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// PreconditionError represents a valid request against a resource that is not
// in a state permitting the operation, e.g. delete while running (HTTP 412).
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }
