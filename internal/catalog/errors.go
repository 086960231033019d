package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a reader asks for an identifier, revision,
	// edit group, changelog entry or blob that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an optimistic concurrency failure at acceptance time.
	ErrConflict = errors.New("conflict")

	// ErrCycleDetected is returned when a redirect walk revisits an identifier.
	ErrCycleDetected = errors.New("redirect cycle detected")

	// ErrBrokenChain is returned when a redirect walk ends at a deleted or
	// missing identifier, or exceeds the configured depth.
	ErrBrokenChain = errors.New("broken redirect chain")
)

// ValidationError describes a malformed edit or entity. Validation errors are
// raised when staging and never reach a commit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ConflictError reports which edit's precondition no longer held when its
// group was accepted. It matches ErrConflict with errors.Is.
type ConflictError struct {
	GroupID    string
	EntityType EntityType
	IdentID    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s %s changed since edit group %s was staged", e.EntityType, e.IdentID, e.GroupID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StorageError wraps a failure of the underlying storage medium. It is kept
// distinct from the logical errors above so callers can tell "the store is
// unreachable" from "your request was rejected".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorage reports whether err (or anything it wraps) is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
