// internal/api/response_helpers.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/BookFlow/internal/errors"
	"github.com/Corphon/BookFlow/internal/utils"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError is the error body of a failed response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper writes APIResponse envelopes.
type ResponseHelper struct {
	log *utils.Logger
}

func NewResponseHelper(log *utils.Logger) *ResponseHelper {
	return &ResponseHelper{log: log}
}

func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusOK, data, message...)
}

func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusCreated, data, message...)
}

func (rh *ResponseHelper) write(c *gin.Context, status int, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

// Error writes a failure envelope and aborts the chain.
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{Code: errorCode, Message: message}
	if len(details) > 0 {
		apiError.Details = details[0]
	}
	c.AbortWithStatusJSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}

func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

func (rh *ResponseHelper) Unauthorized(c *gin.Context, message string) {
	rh.Error(c, http.StatusUnauthorized, ErrorUnauthorized, message)
}

func (rh *ResponseHelper) Forbidden(c *gin.Context, message string) {
	rh.Error(c, http.StatusForbidden, ErrorForbidden, message)
}

// FromError maps err to a status code and envelope. Only AppError messages reach
// the client; anything else is logged and reported as an internal error.
func (rh *ResponseHelper) FromError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		rh.log.Error("unhandled error", "path", c.FullPath(), "request_id", requestID(c), "error", err)
		rh.Error(c, http.StatusInternalServerError, ErrorInternalError, "An internal error occurred")
		return
	}

	status := statusFor(appErr.Type)
	if status >= http.StatusInternalServerError {
		rh.log.Warn("request failed", "path", c.FullPath(), "request_id", requestID(c), "type", appErr.Type, "error", err)
	}
	rh.Error(c, status, appErr.Code, appErr.Message)
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden:
		return http.StatusForbidden
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict, apperrors.ErrorTypeInvalidTransition:
		return http.StatusConflict
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrorTypeConnection, apperrors.ErrorTypeUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
