package domain

import (
	"errors" // Standard error helpers
	"fmt"    // Formatting for messages
)

// ErrorKind classifies an AppError for callers and for HTTP mapping
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation_error"
	KindPaymentRequired     ErrorKind = "payment_required"
	KindAlreadyProcessed    ErrorKind = "already_processed"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindGatewayUnavailable  ErrorKind = "gateway_unavailable"
	KindIntegrityViolation  ErrorKind = "integrity_violation"
	KindSignatureRejected   ErrorKind = "signature_rejected"
	KindNotFound            ErrorKind = "not_found"
	KindForbidden           ErrorKind = "forbidden"
	KindInvalidTransition   ErrorKind = "invalid_transition"
)

// AppError is the single error type surfaced by the service layer
type AppError struct {
	Kind    ErrorKind      // Error class
	Code    string         // Machine-readable code, defaults to Kind
	Message string         // Human message
	Details map[string]any // Extra data for the caller (e.g. current balance)
	Err     error          // Wrapped cause
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

// Unwrap exposes the wrapped cause
func (e *AppError) Unwrap() error { return e.Err }

// Is matches two AppErrors by kind, so the sentinels below work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrValidation          = &AppError{Kind: KindValidation, Code: string(KindValidation)}
	ErrPaymentRequired     = &AppError{Kind: KindPaymentRequired, Code: string(KindPaymentRequired)}
	ErrAlreadyProcessed    = &AppError{Kind: KindAlreadyProcessed, Code: string(KindAlreadyProcessed)}
	ErrInsufficientBalance = &AppError{Kind: KindInsufficientBalance, Code: string(KindInsufficientBalance)}
	ErrGatewayUnavailable  = &AppError{Kind: KindGatewayUnavailable, Code: string(KindGatewayUnavailable)}
	ErrIntegrityViolation  = &AppError{Kind: KindIntegrityViolation, Code: string(KindIntegrityViolation)}
	ErrSignatureRejected   = &AppError{Kind: KindSignatureRejected, Code: string(KindSignatureRejected)}
	ErrNotFound            = &AppError{Kind: KindNotFound, Code: string(KindNotFound)}
	ErrForbidden           = &AppError{Kind: KindForbidden, Code: string(KindForbidden)}
	ErrInvalidTransition   = &AppError{Kind: KindInvalidTransition, Code: string(KindInvalidTransition)}
)

// NewError builds an AppError with the kind as its code
func NewError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Code: string(kind), Message: fmt.Sprintf(format, args...)}
}

// WithCode overrides the machine-readable code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail attaches one detail value
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// Wrap attaches a cause
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// ValidationError is shorthand for the most common kind
func ValidationError(format string, args ...any) *AppError {
	return NewError(KindValidation, format, args...)
}

// NotFound reports a missing entity
func NotFound(entity string) *AppError {
	return NewError(KindNotFound, "%s not found", entity)
}

// AsAppError extracts an AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
