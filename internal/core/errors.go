package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel causes wrapped by ValidationError so callers can match a specific
// problem with errors.Is.
var (
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrAmountPrecision   = errors.New("amount must have at most 2 decimal places")
	ErrAmountTooLarge    = errors.New("amount exceeds the allowed maximum")
	ErrEmptyDescription  = errors.New("description is required")
	ErrDescriptionLength = errors.New("description too long (max 500 characters)")
	ErrInvalidDate       = errors.New("invalid date")
	ErrCategoryRequired  = errors.New("category is required")
	ErrEmptyName         = errors.New("name is required")
	ErrInvalidColor      = errors.New("color must be a hex value like #1f2937")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidStatus     = errors.New("invalid status")
)

// ValidationError reports malformed or missing input. Errors holds one message
// per offending field.
type ValidationError struct {
	Message string
	Errors  []string
	cause   error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Unwrap() error { return e.cause }

// NewValidationError builds a ValidationError from one or more causes. The first
// cause is kept for errors.Is matching.
func NewValidationError(message string, causes ...error) *ValidationError {
	ve := &ValidationError{Message: message}
	for _, c := range causes {
		if c == nil {
			continue
		}
		if ve.cause == nil {
			ve.cause = c
		}
		ve.Errors = append(ve.Errors, c.Error())
	}
	return ve
}

// AuthorizationError means the actor lacks a role or ownership. Message names the
// missing capability and nothing else.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NotFoundError means a referenced record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound is a shorthand for NotFoundError with any printable id.
func NotFound(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// InvalidStateError rejects an illegal lifecycle transition or a mutation that
// the current state forbids.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

// ReferentialIntegrityError means a delete is blocked by dependent rows.
type ReferentialIntegrityError struct {
	Message string
}

func (e *ReferentialIntegrityError) Error() string { return e.Message }

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
