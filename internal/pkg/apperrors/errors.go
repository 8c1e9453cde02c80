package apperrors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Store errors. Only these are allowed to halt a batch.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Course Errors
var (
	ErrCourseNotFound          = errors.New("course not found")
	ErrCourseIdentifierExists  = errors.New("course identifier already exists")
	ErrIdentifierSpaceExceeded = errors.New("could not generate a free course identifier")
)

// Report Errors
var (
	ErrRenderFailed = errors.New("report rendering failed")
	ErrPublish      = errors.New("report publishing failed")
)

// Import Errors
var (
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrMissingColumn     = errors.New("missing required column")
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// NewStoreError marks err as a store-level failure.
func NewStoreError(err error, message string) error {
	return &CustomError{
		Err:     fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
		Message: message + ": " + err.Error(),
	}
}

// IsFatal reports whether err must stop the running batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// ValidationError describes why a single field of an import row was rejected.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrValidationFailed.
func (e ValidationError) Unwrap() error {
	return ErrValidationFailed
}
