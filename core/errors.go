/*
errors.go - Centralized error taxonomy

PURPOSE:
  All error categories in one place. Domain packages wrap these with
  entity-level context; the API layer maps them onto HTTP status codes.

ERROR CATEGORIES:
  1. NotFound      - A referenced entity does not exist (client-correctable)
  2. Duplicate     - A compound uniqueness key was violated
  3. Validation    - Malformed or immutable-field input
  4. Configuration - A required policy point type is missing (setup defect)

USAGE:
  if core.IsNotFound(err) { ... }
  return &core.NotFoundError{Entity: "student", ID: id}
*/
package core

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a compound uniqueness key is violated.
	ErrDuplicate = errors.New("duplicate key")

	// ErrValidation is returned for malformed input or attempts to mutate
	// immutable fields. Input validation also happens upstream, but the
	// services enforce their own rules since that layer is bypassable.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration is returned when a required policy point type is
	// missing. This is a deployment defect, not a user error; it surfaces
	// to clients as an opaque internal failure.
	ErrConfiguration = errors.New("configuration error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity so clients can correct the request.
type NotFoundError struct {
	Entity string
	ID     ID
}

func (e *NotFoundError) Error() string {
	if e.ID.IsZero() {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateError names the conflicting field set of a uniqueness violation.
type DuplicateError struct {
	Entity string
	Fields []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s for (%s)", e.Entity, strings.Join(e.Fields, ", "))
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// ConfigurationError describes a missing or inconsistent policy setup.
// The detail is for operators; clients only ever see an opaque failure.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Detail
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Configf builds a configuration error with a formatted detail.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Detail: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// IsClientError reports whether the error is attributable to client input.
// Configuration errors are deliberately excluded: they are setup defects.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrValidation)
}
