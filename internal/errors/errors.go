// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation_error"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeError             ErrorType = "processing_error"
	ErrorTypeUnauthorized      ErrorType = "unauthorized"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeConnection        ErrorType = "connection_error"
	ErrorTypeUpstream          ErrorType = "upstream_api_error"
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
)

// AppError is the error value passed between layers.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // stable code returned to API clients
}

// Error implements error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error chaining.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError of the given type.
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

func NewUnauthorizedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnauthorized, message, originalError)
}

func NewForbiddenError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeForbidden, message, originalError)
}

func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

func NewConnectionError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConnection, message, originalError)
}

func NewUpstreamError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUpstream, message, originalError)
}

func NewInvalidTransitionError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeInvalidTransition, message, originalError)
}

// TypeOf reports the ErrorType of err, or ErrorTypeError when err is not an AppError.
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ErrorTypeError
}

// generateErrorCode maps an ErrorType to its API code.
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeUnauthorized:
		return "UNAUTHORIZED"
	case ErrorTypeForbidden:
		return "FORBIDDEN"
	case ErrorTypeConflict:
		return "REVISION_CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeConnection:
		return "CONNECTION_FAILED"
	case ErrorTypeUpstream:
		return "UPSTREAM_API_ERROR"
	case ErrorTypeInvalidTransition:
		return "INVALID_TRANSITION"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError wraps err with message, keeping the type of an existing AppError.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError.Err,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
