package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func bodyLimitEngine(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(limit))
	r.POST("/api/v1/sales", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.String(http.StatusRequestEntityTooLarge, "capped at %d", tooLarge.Limit)
				return
			}
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusCreated, "recorded")
	})
	r.GET("/api/v1/invoices/1", func(c *gin.Context) { c.String(http.StatusOK, "view") })
	return r
}

func TestBodyLimit(t *testing.T) {
	sale := `{"payment_method":"CASH","items":[{"product_id":1,"quantity":"1"}]}`

	tests := []struct {
		name          string
		limit         int64
		method        string
		target        string
		body          string
		contentLength int64
		wantStatus    int
		wantBody      string
	}{
		{"sale within limit", 1024, http.MethodPost, "/api/v1/sales", sale, int64(len(sale)), http.StatusCreated, "recorded"},
		{"declared length over limit", 32, http.MethodPost, "/api/v1/sales", sale, int64(len(sale)), http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge},
		{"unknown length capped while reading", 32, http.MethodPost, "/api/v1/sales", sale, -1, http.StatusRequestEntityTooLarge, "capped at 32"},
		{"bodyless read passes", 10, http.MethodGet, "/api/v1/invoices/1", "", 0, http.StatusOK, "view"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			bodyLimitEngine(tt.limit).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestBodyLimit_RejectionCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), BodyLimit(8))
	r.POST("/api/v1/sales", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set(RequestIDHeader, "till-3-req-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "till-3-req-9")
}
