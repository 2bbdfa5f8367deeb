package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeStorageUnavailable, http.StatusServiceUnavailable},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeDuplicateSubmission, http.StatusConflict},
		{ErrCodeIrrecoverable, http.StatusUnprocessableEntity},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		kind     shared.ErrorKind
		expected string
	}{
		{"mapped code", "DUPLICATE_SUBMISSION", shared.KindConflict, ErrCodeDuplicateSubmission},
		{"storage failure", "STORAGE_FAILURE", shared.KindStorageFailure, ErrCodeStorageUnavailable},
		{"overpayment falls back to kind", "EXCEEDS_OUTSTANDING", shared.KindValidation, ErrCodeValidation},
		{"already paid", "ALREADY_PAID", shared.KindConflict, ErrCodeConflict},
		{"no items", "NO_ITEMS", shared.KindIrrecoverable, ErrCodeIrrecoverable},
		{"unknown invoice", "INVOICE_NOT_FOUND", shared.KindNotFound, ErrCodeNotFound},
		{"unknown kind", "SOMETHING", shared.ErrorKind("OTHER"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeFor(tt.code, tt.kind))
		})
	}
}

func TestEveryKindHasAStatus(t *testing.T) {
	for kind, code := range kindCodes {
		status, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "kind %s maps to unlisted code %s", kind, code)
		assert.Greater(t, status, 0)
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Invoice not found", "req-123-456")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Invoice not found", resp.Error.Message)
	assert.Equal(t, "req-123-456", resp.Error.RequestID)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "amount", Message: "Must be greater than 0"},
		{Field: "method", Message: "Must be one of: CASH UPI CHEQUE"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "amount", resp.Error.Details[0].Field)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Invoice not found", "req-test-123")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.Success)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeNotFound, decoded.Error.Code)
	assert.Equal(t, "req-test-123", decoded.Error.RequestID)
	assert.NotContains(t, string(data), `"data"`)
}

func TestErrorResponseTimestamp(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse(ErrCodeInternal, "Server error")
	after := time.Now()

	assert.False(t, resp.Error.Timestamp.Before(before))
	assert.False(t, resp.Error.Timestamp.After(after))
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"invoice_number": "INV-20260314-0003"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}
