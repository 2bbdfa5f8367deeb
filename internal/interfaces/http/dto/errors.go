package dto

import (
	"net/http"

	"github.com/erp/invoicing/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeInternal is used for failures the client cannot act on
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeStorageUnavailable is used when the datastore or artifact directory failed
	ErrCodeStorageUnavailable = "ERR_STORAGE_UNAVAILABLE"
)

// Input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeDuplicateSubmission = "ERR_DUPLICATE_SUBMISSION"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	// ErrCodeIrrecoverable is used when an invoice document cannot be rebuilt
	ErrCodeIrrecoverable = "ERR_IRRECOVERABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeStorageUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateSubmission: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusConflict,

	ErrCodeIrrecoverable: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API codes. Codes not
// listed here are derived from the error's kind.
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"DUPLICATE_SUBMISSION": ErrCodeDuplicateSubmission,
	"STORAGE_FAILURE":      ErrCodeStorageUnavailable,
}

// kindCodes is the fallback API code for each error kind
var kindCodes = map[shared.ErrorKind]string{
	shared.KindNotFound:       ErrCodeNotFound,
	shared.KindValidation:     ErrCodeValidation,
	shared.KindConflict:       ErrCodeConflict,
	shared.KindStorageFailure: ErrCodeStorageUnavailable,
	shared.KindIrrecoverable:  ErrCodeIrrecoverable,
}

// CodeFor returns the API error code for a domain error code of the given kind
func CodeFor(code string, kind shared.ErrorKind) string {
	if mapped, ok := DomainErrorCodeMapping[code]; ok {
		return mapped
	}
	if mapped, ok := kindCodes[kind]; ok {
		return mapped
	}
	return ErrCodeInternal
}

// StorageUnavailableMessage is shown instead of the underlying cause of a
// storage failure
const StorageUnavailableMessage = "The invoice store is temporarily unavailable. Nothing was changed; please retry."
