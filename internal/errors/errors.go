package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeAuthentication indicates bad credentials or an expired/invalid token.
	ErrCodeAuthentication ErrorCode = "authentication"
	// ErrCodeForbidden indicates the token is valid but lacks the required role.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeValidation indicates a payload rejected as malformed, locally or by the backend.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeNetwork indicates the request could not complete.
	ErrCodeNetwork ErrorCode = "network"
	// ErrCodeInternal indicates an internal or upstream server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Status is the upstream HTTP status, when the error came from the backend.
	Status int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newMsg(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func newf(code ErrorCode, format string, args ...any) *AppError {
	return newMsg(code, fmt.Sprintf(format, args...))
}

// Authentication creates a new Authentication error.
func Authentication(message string) *AppError { return newMsg(ErrCodeAuthentication, message) }

// InvalidCredentials is the authentication error returned when a token exchange is rejected.
func InvalidCredentials(detail string) *AppError {
	if detail == "" {
		detail = "Invalid credentials"
	}
	return newMsg(ErrCodeAuthentication, detail)
}

// Forbidden creates a new Forbidden error.
func Forbidden(message string) *AppError { return newMsg(ErrCodeForbidden, message) }

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError { return newMsg(ErrCodeNotFound, message) }

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError { return newf(ErrCodeNotFound, format, args...) }

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError { return newMsg(ErrCodeConflict, message) }

// Validation creates a new Validation error.
func Validation(message string) *AppError { return newMsg(ErrCodeValidation, message) }

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return newf(ErrCodeValidation, format, args...)
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Network wraps a transport failure.
func Network(err error) *AppError {
	return Wrap(err, ErrCodeNetwork, "backend unreachable")
}

// Internal creates a new Internal error.
func Internal(message string) *AppError { return newMsg(ErrCodeInternal, message) }

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError { return newf(ErrCodeInternal, format, args...) }

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// FromStatus maps a backend HTTP status to an AppError carrying the backend's detail message.
func FromStatus(status int, detail string) *AppError {
	code := CodeForStatus(status)
	if detail == "" {
		detail = defaultMessage(code)
	}
	return &AppError{Code: code, Message: detail, Status: status}
}

// CodeForStatus returns the error code for a non-2xx HTTP status.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == 401:
		return ErrCodeAuthentication
	case status == 403:
		return ErrCodeForbidden
	case status == 400 || status == 422:
		return ErrCodeValidation
	case status == 404:
		return ErrCodeNotFound
	case status == 409:
		return ErrCodeConflict
	case status == 408 || status == 504:
		return ErrCodeTimeout
	default:
		return ErrCodeInternal
	}
}

func defaultMessage(code ErrorCode) string {
	switch code {
	case ErrCodeAuthentication:
		return "not authenticated"
	case ErrCodeForbidden:
		return "not allowed"
	case ErrCodeValidation:
		return "request rejected"
	case ErrCodeNotFound:
		return "not found"
	case ErrCodeConflict:
		return "already exists"
	case ErrCodeTimeout:
		return "request timed out"
	default:
		return "backend error"
	}
}

// FromTransport classifies an error returned by an http.Client round trip.
func FromTransport(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "backend request timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "backend request canceled")
	default:
		return Network(err)
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsAuthentication checks if an error is an Authentication error.
func IsAuthentication(err error) bool { return isCode(err, ErrCodeAuthentication) }

// IsForbidden checks if an error is a Forbidden error.
func IsForbidden(err error) bool { return isCode(err, ErrCodeForbidden) }

// IsAuthFailure reports authentication or forbidden failures.
func IsAuthFailure(err error) bool { return IsAuthentication(err) || IsForbidden(err) }

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsNetwork checks if an error is a Network error.
func IsNetwork(err error) bool { return isCode(err, ErrCodeNetwork) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool { return isCode(err, ErrCodeTimeout) }

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool { return isCode(err, ErrCodeCanceled) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// Message returns the user-facing message of an AppError, or fallback for other errors.
func Message(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
