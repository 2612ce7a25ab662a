package pool

import "fanout/pkg/types"

// notFoundError signals an operation on an id the pool does not know.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "possibility not found: " + e.id }

// ErrNotFound constructs a notFoundError.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates an unknown possibility id.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// invalidStatusError signals an operation applied to an item whose
// status does not permit it.
type invalidStatusError struct {
	id     string
	status types.PossibilityStatus
	op     string
}

func (e invalidStatusError) Error() string {
	return "cannot " + e.op + " possibility " + e.id + " in status " + string(e.status)
}

// IsInvalidStatus reports whether err indicates a status-guarded
// operation was rejected.
func IsInvalidStatus(err error) bool {
	_, ok := err.(invalidStatusError)
	return ok
}
