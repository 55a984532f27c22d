// internal/api/error_codes.go
package api

// Codes produced by the API layer itself. Service errors carry their own code.
const (
	ErrorBadRequest        = "BAD_REQUEST"
	ErrorUnauthorized      = "UNAUTHORIZED"
	ErrorForbidden         = "FORBIDDEN"
	ErrorInternalError     = "INTERNAL_ERROR"
	ErrorRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)
