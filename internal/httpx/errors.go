package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable codes returned in every response envelope
const (
	CodeSuccess = "OK"

	// Validation (400)
	CodeMissingField     = "MISSING_FIELD"
	CodeInvalidField     = "INVALID_FIELD"
	CodeInvalidDIDFormat = "INVALID_DID_FORMAT"

	// Authentication/Authorization (401/403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeForbidden    = "FORBIDDEN"

	// Resource (404/409/429)
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeRateLimited   = "RATE_LIMITED"

	// System (500)
	CodeInternalError = "INTERNAL_ERROR"
	CodeStoreError    = "STORE_ERROR"
)

// AppError represents an application error with HTTP status and business code
type AppError struct {
	HTTPStatus int         // HTTP status code
	Code       string      // Business error code
	Message    string      // User-facing error message
	Err        error       // Internal error (for logging only, not returned to client)
	Data       interface{} // Additional data returned alongside the error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code=%s, message=%s, err=%v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code=%s, message=%s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithData adds additional data to the error
func (e *AppError) WithData(data interface{}) *AppError {
	e.Data = data
	return e
}

// NewAppError creates a new AppError
func NewAppError(httpStatus int, code string, message string, err error) *AppError {
	return &AppError{
		HTTPStatus: httpStatus,
		Code:       code,
		Message:    message,
		Err:        err,
	}
}

// AsAppError returns err as an *AppError, wrapping anything else as an
// internal error. A nil err returns nil.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalError("", err)
}

// Validation error constructors

// ErrMissingField creates a 400 missing field error
func ErrMissingField(message string) *AppError {
	if message == "" {
		message = "required field missing"
	}
	return NewAppError(http.StatusBadRequest, CodeMissingField, message, nil)
}

// ErrInvalidField creates a 400 invalid field error
func ErrInvalidField(message string) *AppError {
	if message == "" {
		message = "invalid field"
	}
	return NewAppError(http.StatusBadRequest, CodeInvalidField, message, nil)
}

// ErrInvalidDIDFormat creates a 400 malformed DID error
func ErrInvalidDIDFormat(message string) *AppError {
	if message == "" {
		message = "invalid DID format, expected did:mesh:<id>"
	}
	return NewAppError(http.StatusBadRequest, CodeInvalidDIDFormat, message, nil)
}

// Authentication/Authorization error constructors

// ErrUnauthorized creates a 401 unauthorized error
func ErrUnauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

// ErrInvalidToken creates a 401 invalid token error
func ErrInvalidToken(message string) *AppError {
	if message == "" {
		message = "invalid token"
	}
	return NewAppError(http.StatusUnauthorized, CodeInvalidToken, message, nil)
}

// ErrTokenExpired creates a 401 token expired error
func ErrTokenExpired(message string) *AppError {
	if message == "" {
		message = "token expired"
	}
	return NewAppError(http.StatusUnauthorized, CodeTokenExpired, message, nil)
}

// ErrForbidden creates a 403 forbidden error
func ErrForbidden(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return NewAppError(http.StatusForbidden, CodeForbidden, message, nil)
}

// Resource error constructors

// ErrNotFound creates a 404 not found error
func ErrNotFound(message string) *AppError {
	if message == "" {
		message = "resource not found"
	}
	return NewAppError(http.StatusNotFound, CodeNotFound, message, nil)
}

// ErrAlreadyExists creates a 409 already exists error
func ErrAlreadyExists(message string) *AppError {
	if message == "" {
		message = "resource already exists"
	}
	return NewAppError(http.StatusConflict, CodeAlreadyExists, message, nil)
}

// ErrRateLimited creates a 429 rate limited error
func ErrRateLimited(message string) *AppError {
	if message == "" {
		message = "too many requests"
	}
	return NewAppError(http.StatusTooManyRequests, CodeRateLimited, message, nil)
}

// System error constructors

// ErrInternalError creates a 500 internal error
func ErrInternalError(message string, err error) *AppError {
	if message == "" {
		message = "internal error"
	}
	return NewAppError(http.StatusInternalServerError, CodeInternalError, message, err)
}

// ErrStoreError creates a 500 persistence error
func ErrStoreError(message string, err error) *AppError {
	if message == "" {
		message = "storage error"
	}
	return NewAppError(http.StatusInternalServerError, CodeStoreError, message, err)
}
