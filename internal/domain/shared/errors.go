// Package shared contains common domain types and errors used across all domain packages.
// Besides google/uuid for identifier parsing it has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLockNotAcquired        = errors.New("lock not acquired")

	// Storage errors
	ErrStorage            = errors.New("storage error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "evaluation", "student", "record"
	Op      string // Operation that failed, e.g., "UpsertWeekly"
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
	ErrStudentNotFound  = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrInvalidStudentID = NewDomainError("student", "Validate", ErrInvalidID, "student ID must be a UUID")
	ErrInvalidHalaqaID  = NewDomainError("student", "Validate", ErrInvalidID, "halaqa ID must be a UUID")
)

// Evaluation domain errors
var (
	ErrEvaluationNotFound = NewDomainError("evaluation", "Find", ErrNotFound, "evaluation not found")
	ErrInvalidRating      = NewDomainError("evaluation", "Validate", ErrValueOutOfRange, "rating must be between 0 and 10")
	ErrInvalidStars       = NewDomainError("evaluation", "Validate", ErrValueOutOfRange, "stars must be between 0 and 5")
	ErrNegativeTotal      = NewDomainError("evaluation", "Validate", ErrValueOutOfRange, "total points cannot be negative")
	ErrZeroReferenceDate  = NewDomainError("evaluation", "Validate", ErrInvalidInput, "reference date is required")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidEntity)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrLockNotAcquired)
}
