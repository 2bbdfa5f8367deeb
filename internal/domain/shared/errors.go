package shared

import "errors"

// ErrorKind classifies a DomainError into the failure categories callers branch on
type ErrorKind string

const (
	// KindNotFound means the addressed record does not exist in any layout
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindValidation means the request was rejected before any state changed
	KindValidation ErrorKind = "VALIDATION"
	// KindConflict means the record's current state forbids the operation
	KindConflict ErrorKind = "CONFLICT"
	// KindStorageFailure means the datastore or filesystem failed and the operation was rolled back
	KindStorageFailure ErrorKind = "STORAGE_FAILURE"
	// KindIrrecoverable means the ledger holds too little data to rebuild a document
	KindIrrecoverable ErrorKind = "IRRECOVERABLE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying infrastructure error, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches another DomainError with the same code, so that
// errors.Is(err, shared.ErrNotFound) holds for any not-found error.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a validation-kind domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewNotFoundError creates a not-found domain error
func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindNotFound}
}

// NewValidationError creates a validation domain error
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewConflictError creates a conflict domain error
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConflict}
}

// NewIrrecoverableError creates an irrecoverable domain error
func NewIrrecoverableError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindIrrecoverable}
}

// NewStorageError wraps an infrastructure failure. Message is safe to show to
// an operator; cause is kept for logs only.
func NewStorageError(message string, cause error) *DomainError {
	return &DomainError{Code: "STORAGE_FAILURE", Message: message, Kind: KindStorageFailure, cause: cause}
}

// KindOf reports the kind of the first DomainError in err's chain.
// Errors that are not DomainErrors are storage failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorageFailure
}

// IsKind reports whether err is a DomainError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Common domain errors
var (
	ErrNotFound            = NewNotFoundError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState        = NewConflictError("INVALID_STATE", "Operation not allowed in current state")
	ErrConcurrencyConflict = NewConflictError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrDuplicateSubmission = NewConflictError("DUPLICATE_SUBMISSION", "This request was already submitted")
)
