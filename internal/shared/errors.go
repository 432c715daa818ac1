package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input: bad phone, missing field, unknown enum value.
	ErrValidation = errors.New("validation failed")
	// ErrUniqueness marks a duplicate national ID, badge number, station head or crime team.
	ErrUniqueness = errors.New("uniqueness violation")
	// ErrReferentialIntegrity marks a reference to a missing parent row, or a delete blocked by dependants.
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	// ErrInconsistentRole marks an account role that does not map to a profile subtype.
	ErrInconsistentRole = errors.New("inconsistent account role")
	// ErrConflict marks a transaction aborted by a concurrent writer. The request may be retried as is.
	ErrConflict = errors.New("concurrent update conflict")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap ties the error to ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UniquenessViolation names the constraint that rejected the write.
type UniquenessViolation struct {
	Constraint string
}

func (e *UniquenessViolation) Error() string {
	if e.Constraint == "" {
		return ErrUniqueness.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUniqueness.Error(), e.Constraint)
}

func (e *UniquenessViolation) Unwrap() error { return ErrUniqueness }

// ReferenceError names the reference that could not be resolved.
type ReferenceError struct {
	Field  string
	Detail string
}

func (e *ReferenceError) Error() string {
	msg := ErrReferentialIntegrity.Error()
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ReferenceError) Unwrap() error { return ErrReferentialIntegrity }

// MissingReference reports that field points at a row that does not exist.
func MissingReference(field string) error {
	return &ReferenceError{Field: field, Detail: "referenced row does not exist"}
}

// UserSafeMessage returns an error message suitable for API clients.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUniqueness),
		errors.Is(err, ErrReferentialIntegrity),
		errors.Is(err, ErrInconsistentRole),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound):
		return err.Error()
	default:
		return "internal error"
	}
}
