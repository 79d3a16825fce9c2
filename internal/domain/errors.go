package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or missing input fields. It is always
// surfaced to the caller and never retried.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid input: missing or malformed fields: %s", strings.Join(e.Fields, ", "))
}

// NewValidationError builds a ValidationError for a single offending field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Fields:  []string{field},
		Message: fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
	}
}

// NotFoundError reports a model, provider or plan absent from the pricing
// store. Known lists the identifiers that do exist, to aid correction.
type NotFoundError struct {
	Kind       string
	Identifier string
	Known      []string
}

func (e *NotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("%s %q not found in pricing database", e.Kind, e.Identifier)
	}
	return fmt.Sprintf("%s %q not found in pricing database (known: %s)",
		e.Kind, e.Identifier, strings.Join(e.Known, ", "))
}

// RefreshError reports a failed refresh cycle. The persisted document is
// left untouched when it occurs.
type RefreshError struct {
	Stage string
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("pricing refresh failed during %s: %v", e.Stage, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// StorageError reports an unreadable or unwritable pricing document. Fatal
// for any operation that needs the document; pricing records are never
// silently substituted.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("pricing store %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsRefresh reports whether err is (or wraps) a RefreshError.
func IsRefresh(err error) bool {
	var target *RefreshError
	return errors.As(err, &target)
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
