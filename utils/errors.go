package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// Is matches service errors by code so wrapped or detailed copies still
// compare equal to the sentinel values below.
func (e ServiceError) Is(target error) bool {
	var other ServiceError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithDetails returns a copy of the error carrying extra context.
func (e ServiceError) WithDetails(details string) ServiceError {
	e.Details = details
	return e
}

// NewServiceErrorWithStatus creates a service error with specific HTTP status
func NewServiceErrorWithStatus(code, message string, statusCode int) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewServiceErrorWithCause creates a service error that wraps another error
func NewServiceErrorWithCause(code, message string, cause error) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

func NewValidationError(message string) error {
	return ServiceError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("Database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// Tracking errors. All of them are recoverable and reported to the caller.
var (
	ErrAlreadyActive = ServiceError{
		Code:       "ALREADY_ACTIVE",
		Message:    "A tracking session is already active for this visit",
		StatusCode: http.StatusConflict,
	}
	ErrSessionNotFound = ServiceError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Tracking session not found",
		StatusCode: http.StatusNotFound,
	}
	ErrSessionNotActive = ServiceError{
		Code:       "SESSION_NOT_ACTIVE",
		Message:    "Tracking session is not active",
		StatusCode: http.StatusConflict,
	}
	ErrNoActiveAlert = ServiceError{
		Code:       "NO_ACTIVE_ALERT",
		Message:    "There is no active panic alert for this visit",
		StatusCode: http.StatusNotFound,
	}
	ErrTooManyContacts = ServiceError{
		Code:       "TOO_MANY_CONTACTS",
		Message:    "This visit is already shared with the maximum number of contacts",
		StatusCode: http.StatusConflict,
	}
	ErrInvalidOrExpiredLink = ServiceError{
		Code:       "INVALID_OR_EXPIRED_LINK",
		Message:    "This tracking link is invalid or has expired",
		StatusCode: http.StatusNotFound,
	}
	ErrUnauthorized = ServiceError{
		Code:       "UNAUTHORIZED",
		Message:    "You are not allowed to act on this tracking session",
		StatusCode: http.StatusForbidden,
	}
	ErrConcurrentUpdate = ServiceError{
		Code:       "CONCURRENT_UPDATE",
		Message:    "The tracking session was modified concurrently, please retry",
		StatusCode: http.StatusConflict,
	}
)

// Persistence errors returned by session stores.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateVisit  = errors.New("duplicate visit")
	ErrVersionConflict = errors.New("version conflict")
)
