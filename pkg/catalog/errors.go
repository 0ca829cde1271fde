// Package catalog implements the group hierarchy engine: ordering,
// bounded-depth subtree reads, and structural mutations (move, clone,
// cascade delete) over the models layer.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced id is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParent is returned when a reparent would create a cycle,
	// cross project boundaries, or target an id that is not a group.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrNotEmpty is returned by a non-cascade delete on a group that
	// still has child groups or APIs.
	ErrNotEmpty = errors.New("group is not empty")

	// ErrConflict is returned when a structural mutation collides with a
	// concurrent one, or when a (path, method) collision cannot be
	// resolved. Conflicts are retryable.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries field-level messages for malformed input. It
// is detected before any persistence attempt.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
