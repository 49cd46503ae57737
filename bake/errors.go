package bake

import (
	"errors"
	"fmt"
)

// Kind categorizes the errors which end a bake.
type Kind string

const (
	// MissingCacheLocation indicates the cache directory was not set or
	// does not exist. Nothing is simulated and the bake ends with a warning.
	MissingCacheLocation Kind = "MISSING_CACHE_LOCATION"

	// CorruptCacheEntry indicates a cache file could not be decoded.
	CorruptCacheEntry Kind = "CORRUPT_CACHE_ENTRY"

	// CachePersistError indicates a cache file could not be written or
	// removed.
	CachePersistError Kind = "CACHE_PERSIST_ERROR"

	// SolverDivergence indicates the solver failed to advance a frame.
	SolverDivergence Kind = "SOLVER_DIVERGENCE"

	// Canceled indicates the bake was canceled between two frames.
	Canceled Kind = "CANCELED"

	// InvalidSetup indicates the solver, emitters, or colliders could not
	// be created from the configuration.
	InvalidSetup Kind = "INVALID_SETUP"
)

// Error is returned by a bake which did not finish. Frame is -1 when the
// error isn't tied to a frame.
type Error struct {
	Kind  Kind
	Frame int
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("%s: frame %d: %v", e.Kind, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind returns true if err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
