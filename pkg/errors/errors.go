package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal error")
	ErrCorruptRecord      = errors.New("corrupt record")
	ErrMalformedResultSet = errors.New("malformed result set")
	ErrDataStore          = errors.New("data store failure")
	ErrServiceUnavail     = errors.New("service unavailable")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidFilter creates a 400 error for a malformed list filter such as a bad
// id list or an inverted price range.
func InvalidFilter(format string, args ...any) *AppError {
	return &AppError{
		Code:    "INVALID_FILTER",
		Message: fmt.Sprintf(format, args...),
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidFilter,
	}
}

// InvalidArgument creates a 400 error for an out-of-domain argument.
func InvalidArgument(format string, args ...any) *AppError {
	return &AppError{
		Code:    "INVALID_ARGUMENT",
		Message: fmt.Sprintf(format, args...),
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidArgument,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// CorruptRecord creates a 500 error for stored data that cannot be decoded.
// The cause is kept in the chain so both errors.Is(err, ErrCorruptRecord) and
// errors.Is(err, cause) hold.
func CorruptRecord(message string, cause error) *AppError {
	return &AppError{
		Code:    "CORRUPT_RECORD",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     join(ErrCorruptRecord, cause),
	}
}

// MalformedResultSet creates a 500 error for a query that returned a different
// number of row-sets than its contract declares.
func MalformedResultSet(queryID string, want, got int) *AppError {
	return &AppError{
		Code:    "MALFORMED_RESULT_SET",
		Message: fmt.Sprintf("query %s returned %d row-sets, expected %d", queryID, got, want),
		Status:  http.StatusInternalServerError,
		Err:     ErrMalformedResultSet,
	}
}

// DataStore creates an error for any failure raised while executing a named
// query. A rejection by an open circuit maps to 503.
func DataStore(queryID string, cause error, unavailable bool) *AppError {
	status := http.StatusInternalServerError
	if unavailable {
		status = http.StatusServiceUnavailable
	}
	return &AppError{
		Code:    "DATA_STORE_ERROR",
		Message: fmt.Sprintf("query %s failed", queryID),
		Status:  status,
		Err:     join(ErrDataStore, cause),
	}
}

func join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
