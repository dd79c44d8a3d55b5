// Package apperr defines the error taxonomy shared by the gateways, the
// middleware and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors used across all layers.
var (
	ErrConfiguration          = errors.New("configuration error")
	ErrValidation             = errors.New("validation error")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrTransport              = errors.New("transport error")
	ErrTimedOut               = errors.New("timed out")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("validation: %d errors (%s)", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// Code classifies a backend failure so it can be shown to an admin.
type Code string

const (
	CodeUnknown       Code = "unknown"
	CodeNotEnabled    Code = "not-enabled"
	CodeUnauthorized  Code = "unauthorized"
	CodeQuotaExceeded Code = "quota-exceeded"
	CodeCanceled      Code = "canceled"
	CodeInvalidFormat Code = "invalid-format"
	CodeUnavailable   Code = "unavailable"
	CodeTimedOut      Code = "timed-out"
)

// TransportError is a failed call to the document store or the object store.
// It matches ErrTransport, and ErrTimedOut when Code is CodeTimedOut.
type TransportError struct {
	Op   string
	Code Code
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrTimedOut:
		return e.Code == CodeTimedOut
	}
	return false
}

// Transport wraps err as a TransportError unless it already is one or is one
// of the local, pre-network errors.
func Transport(op string, code Code, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAuthenticationRequired) {
		return err
	}
	return &TransportError{Op: op, Code: code, Err: err}
}

// Timeout reports an operation that was abandoned after waiting for after.
func Timeout(op string, after time.Duration) error {
	return &TransportError{Op: op, Code: CodeTimedOut, Err: fmt.Errorf("no response after %s", after)}
}

// CodeOf returns the code of the first TransportError in err's chain.
func CodeOf(err error) Code {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeUnknown
}

// Configuration marks err as a missing or invalid setup value.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
