package shared

import "fmt"

// Error codes shared across the storefront
const (
	CodeRemoteRequestFailed  = "REMOTE_REQUEST_FAILED"
	CodeLoginFailed          = "LOGIN_FAILED"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeSubmissionInProgress = "SUBMISSION_IN_PROGRESS"
	CodeDuplicateSubmission  = "DUPLICATE_SUBMISSION"
	CodeUntrustedOrigin      = "UNTRUSTED_ORIGIN"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidInput         = "INVALID_INPUT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, shared.ErrLoginFailed) matches any login failure.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewRemoteRequestFailed reports a transport failure or a backend-declared rejection
func NewRemoteRequestFailed(format string, args ...any) *DomainError {
	return NewDomainError(CodeRemoteRequestFailed, fmt.Sprintf(format, args...))
}

// NewLoginFailed reports an identity resolution failure
func NewLoginFailed(format string, args ...any) *DomainError {
	return NewDomainError(CodeLoginFailed, fmt.Sprintf(format, args...))
}

// NewValidationFailed reports a client-side validation failure
func NewValidationFailed(message string) *DomainError {
	return NewDomainError(CodeValidationFailed, message)
}

// Common domain errors
var (
	ErrRemoteRequestFailed  = NewDomainError(CodeRemoteRequestFailed, "Remote request failed")
	ErrLoginFailed          = NewDomainError(CodeLoginFailed, "Login failed")
	ErrValidationFailed     = NewDomainError(CodeValidationFailed, "Validation failed")
	ErrSubmissionInProgress = NewDomainError(CodeSubmissionInProgress, "An order submission is already in progress")
	ErrDuplicateSubmission  = NewDomainError(CodeDuplicateSubmission, "This order has already been submitted")
	ErrUntrustedOrigin      = NewDomainError(CodeUntrustedOrigin, "Message origin is not trusted")
	ErrNotFound             = NewDomainError(CodeNotFound, "Resource not found")
	ErrUnauthorized         = NewDomainError(CodeUnauthorized, "Not logged in")
	ErrInvalidInput         = NewDomainError(CodeInvalidInput, "Invalid input provided")
)
