package errors

import (
	"errors"
	"fmt"
)

var (
	// Transaction errors
	ErrTransactionTerminal = errors.New("transaction is in a terminal state")
	ErrInvalidTransaction  = errors.New("invalid transaction payload")
	ErrMissingIdentifier   = errors.New("transaction identifier could not be resolved")

	// Confirmation errors
	ErrMissingGateway       = errors.New("payment gateway could not be resolved")
	ErrConfirmationInFlight = errors.New("confirmation already in flight")
	ErrCheckoutNotReady     = errors.New("external checkout is not ready")

	// Option errors
	ErrOptionNotFound      = errors.New("payment option not found")
	ErrOptionNotSelectable = errors.New("payment option not selectable for channel")
	ErrChannelUnavailable  = errors.New("payment channel unavailable")

	// Instrument errors
	ErrInstrumentNotFound   = errors.New("saved instrument not found")
	ErrNoInstrumentSelected = errors.New("no saved instrument selected")

	// Session errors
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSessionClosed    = errors.New("checkout session closed")
	ErrEngineNotStarted = errors.New("checkout engine not started")

	// Backend errors
	ErrBackendUnavailable = errors.New("backend unavailable")

	// Auth errors
	ErrUnauthenticated = errors.New("caller is not authenticated")
	ErrUnauthorized    = errors.New("unauthorized")

	// Lock errors
	ErrLockNotHeld = errors.New("lock not held or already released")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any validation error with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
