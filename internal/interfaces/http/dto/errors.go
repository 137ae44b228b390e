package dto

import (
	"net/http"

	"github.com/erp/storefront/internal/domain/shared"
)

// Error codes produced by the HTTP layer itself. Domain codes come from the
// shared package and are passed through unchanged.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeForbidden is used when a request is refused outright
	ErrCodeForbidden = "FORBIDDEN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	shared.CodeInvalidInput: http.StatusBadRequest,

	// Validation of the order form -> 400 Bad Request
	shared.CodeValidationFailed: http.StatusBadRequest,

	// Identity
	shared.CodeUnauthorized:    http.StatusUnauthorized,
	shared.CodeLoginFailed:     http.StatusUnauthorized,
	shared.CodeUntrustedOrigin: http.StatusForbidden,
	ErrCodeForbidden:           http.StatusForbidden,

	// Resources
	shared.CodeNotFound: http.StatusNotFound,

	// Submission conflicts -> 409 Conflict
	shared.CodeSubmissionInProgress: http.StatusConflict,
	shared.CodeDuplicateSubmission:  http.StatusConflict,

	// The backend failed or refused -> 502 Bad Gateway
	shared.CodeRemoteRequestFailed: http.StatusBadGateway,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
