package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with extra detail appended to the message
func (e *DomainError) WithDetails(format string, args ...any) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrSystemUnstable      = NewDomainError("SYSTEM_UNSTABLE", "System is not stable enough for optimization")
	ErrSafetyCheckFailed   = NewDomainError("SAFETY_CHECK_FAILED", "Action failed its safety check")
	ErrBenchmarkRunning    = NewDomainError("BENCHMARK_RUNNING", "Benchmark test is already running")
	ErrNoRollbackAvailable = NewDomainError("NO_ROLLBACK_AVAILABLE", "No rollback point exists for this action")
)
