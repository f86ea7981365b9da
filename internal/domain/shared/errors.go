package shared

import "errors"

// DomainError represents a recoverable, caller-facing business rule violation
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes used across the billing and approval domains
const (
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodePreconditionFailed    = "PRECONDITION_FAILED"
	CodeOverpaymentRejected   = "OVERPAYMENT_REJECTED"
	CodeAlreadyConverted      = "ALREADY_CONVERTED"
	CodeUnauthorizedResponder = "UNAUTHORIZED_RESPONDER"
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeTransientFailure      = "TRANSIENT_FAILURE"
	CodeInvariantViolation    = "INVARIANT_VIOLATION"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrTransientFailure    = NewDomainError(CodeTransientFailure, "Transient persistence failure, safe to retry")
)

// HasCode reports whether err is a DomainError carrying the given code
func HasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsRetryable reports whether err may be retried around an atomic unit
// that has not committed. Only transient persistence failures and
// optimistic-lock conflicts qualify.
func IsRetryable(err error) bool {
	return HasCode(err, CodeTransientFailure) || HasCode(err, CodeConcurrencyConflict)
}
