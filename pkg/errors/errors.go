package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain errors
var (
	ErrValidationFailed        = errors.New("validation failed")
	ErrWorkflowViolation       = errors.New("operation not allowed in current workflow state")
	ErrInvalidRetry            = errors.New("retry not allowed")
	ErrNotFound                = errors.New("resource not found")
	ErrCollaboratorUnavailable = errors.New("verification collaborator unavailable")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
	ErrCodeWorkflowViolation       = "WORKFLOW_VIOLATION"
	ErrCodeInvalidRetry            = "INVALID_RETRY"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

// Wrap common errors with business context

// WrapValidationFailed joins every violated rule into one error so the caller
// sees the full list in a single round trip.
func WrapValidationFailed(violations []string) *BusinessError {
	return NewBusinessError(
		ErrCodeValidationFailed,
		strings.Join(violations, "; "),
		ErrValidationFailed,
	)
}

func WrapWorkflowViolation(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeWorkflowViolation,
		message,
		ErrWorkflowViolation,
	)
}

func WrapInvalidRetry(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidRetry,
		message,
		ErrInvalidRetry,
	)
}

func WrapApplicationNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Application with ID %s not found", id),
		ErrNotFound,
	)
}

func WrapCollaboratorUnavailable(name string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCollaboratorUnavailable,
		fmt.Sprintf("%s is unavailable; the application stays pending and the operation can be re-issued after recovery", name),
		errors.Join(ErrCollaboratorUnavailable, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"cache operation failed",
		err,
	)
}

// CodeOf returns the business error code, or an empty string for plain errors.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// HTTPStatus maps a business error to the HTTP status the transport layer
// should answer with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeWorkflowViolation, ErrCodeInvalidRetry:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeCollaboratorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
