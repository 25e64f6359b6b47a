package errors

import (
	"errors"
	"fmt"
)

var (
	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrVersionConflict        = errors.New("version conflict")

	// Payment method errors
	ErrMethodNotFound    = errors.New("payment method not found")
	ErrNoDefaultMethod   = errors.New("no default payment method configured")
	ErrMethodInUse       = errors.New("payment method referenced by an open transaction")
	ErrInvalidInstrument = errors.New("invalid payment instrument")

	// Gateway errors
	ErrGatewayNotFound    = errors.New("payment gateway not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayTimeout     = errors.New("payment gateway request timeout")

	// Webhook errors
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// GatewayAmbiguous reports whether err is an outcome the gateway did not
// definitively resolve: the remote charge may or may not have happened.
func GatewayAmbiguous(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) || errors.Is(err, ErrGatewayUnavailable)
}

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

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
