// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState         = errors.New("invalid state")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrNothingToUndo        = errors.New("nothing to undo")

	// Storage errors
	ErrStorage            = errors.New("storage error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "course", "undo"
	Op      string // Operation that failed, e.g., "Save", "RemoveSubject"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound         = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrSubjectNotEnrolled      = NewDomainError("student", "RemoveSubject", ErrInvalidInput, "subject is not in the student's list")
	ErrRemovalNotConfirmed     = NewDomainError("student", "RemoveSubject", ErrConfirmationRequired, "subject removal must be confirmed")
	ErrDeletionNotConfirmed    = NewDomainError("student", "Delete", ErrConfirmationRequired, "student deletion must be confirmed")
	ErrInvalidStage            = NewDomainError("student", "MoveToStage", ErrInvalidInput, "unknown pipeline stage")
	ErrInvalidStatus           = NewDomainError("student", "ChangeStatus", ErrInvalidInput, "unknown student status")
	ErrUnknownUndoFeature      = NewDomainError("undo", "Resolve", ErrInvalidInput, "unknown undo feature")
	ErrExamSubjectRequired     = NewDomainError("exam", "Record", ErrEmptyValue, "exam subject is required")
	ErrExamMaxScoreNonPositive = NewDomainError("exam", "Record", ErrValueOutOfRange, "exam max score must be positive")
)

// ═══════════════════════════════════════════════════════════════════════════
// Field validation
// ═══════════════════════════════════════════════════════════════════════════

// ValidationError carries a field-keyed map of messages. Nothing is persisted
// when a command returns it; the caller is expected to re-prompt.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a ValidationError from a field map.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for field errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AsValidation extracts a ValidationError from the chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
