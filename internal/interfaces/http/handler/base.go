package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// BindJSON decodes the request body into req and answers 400/413 itself
// when that fails. It reports whether the handler should continue.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var (
		fieldErrs validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &fieldErrs):
		middleware.HandleValidationError(c, fieldErrs)
	case errors.As(err, &tooLarge):
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Request body exceeds maximum allowed size")
	case errors.Is(err, io.EOF):
		h.BadRequest(c, "Request body is required")
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON: "+err.Error())
	default:
		h.BadRequest(c, err.Error())
	}
	return false
}

// ParseID reads a positive integer path parameter, answering 400 itself
// when it is malformed
func (h *BaseHandler) ParseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "Invalid "+name+": must be a positive number")
		return 0, false
	}
	return id, true
}

// HandleError converts service errors to HTTP responses. Validation,
// conflict and not-found messages are shown as they are; storage failures
// get a generic message and their cause goes to the log only.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	log := logger.GetGinLogger(c)

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		log.Error("unexpected error", zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeStorageUnavailable, dto.StorageUnavailableMessage)
		return
	}

	code := dto.CodeFor(domainErr.Code, domainErr.Kind)
	message := domainErr.Message
	if domainErr.Kind == shared.KindStorageFailure {
		log.Error("storage failure", zap.String("code", domainErr.Code), zap.Error(err))
		message = dto.StorageUnavailableMessage
	}
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}
