// Package errors provides common domain error types for the quarry application.
//
// It defines sentinel errors for conditions like "not found" or "invalid
// state" that cross package boundaries, so callers can use errors.Is checks
// instead of matching on storage-layer error types.
//
// Usage:
//
//	import qerrors "github.com/quarryintel/quarry-cli/pkg/errors"
//
//	// Return a domain error
//	return nil, qerrors.ErrNotFound
//
//	// Check for domain errors
//	if qerrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found, or was not
	// in the status the operation requires.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g. duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether any error in err's chain is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
