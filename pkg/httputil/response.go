package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/pkg/logger"
	"github.com/utafrali/CatalogGo/pkg/pagination"
	"github.com/utafrali/CatalogGo/pkg/validator"
)

// Response is the standard JSON response envelope used across all services.
// Successful responses carry Data and Metadata; failures carry Error and a
// top-level Timestamp.
type Response struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Metadata  *Metadata      `json:"metadata,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Metadata accompanies every successful response. Pagination fields are
// flattened into it when present.
type Metadata struct {
	*pagination.Metadata
	Timestamp string `json:"timestamp"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

var exposeDetails atomic.Bool

// ExposeErrorDetails controls whether the underlying cause of server-side
// errors is echoed in the details field. Enable only in development.
func ExposeErrorDetails(enabled bool) {
	exposeDetails.Store(enabled)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Success builds a success envelope. page may be nil for non-list payloads.
func Success(data any, page *pagination.Metadata) Response {
	return Response{
		Success:  true,
		Data:     data,
		Metadata: &Metadata{Metadata: page, Timestamp: timestamp()},
	}
}

// Failure builds a failure envelope.
func Failure(code, message string, details any) Response {
	return Response{
		Success:   false,
		Error:     &ErrorResponse{Code: code, Message: message, Details: details},
		Timestamp: timestamp(),
	}
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails, the error is logged but headers are already sent so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a 200 success envelope.
func WriteSuccess(w http.ResponseWriter, data any, page *pagination.Metadata) {
	WriteJSON(w, http.StatusOK, Success(data, page))
}

// WriteError writes a standardized error response based on the error type.
// It handles AppError and the package sentinels, and logs server errors. It
// prefers the request-scoped logger from context (set by the RequestLogger
// middleware) over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
	}

	var details any
	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("code", code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		if exposeDetails.Load() {
			details = err.Error()
		}
	}

	resp := Failure(code, message, details)
	resp.Error.RequestID = requestID
	WriteJSON(w, status, resp)
}

// WriteValidationError writes a standardized validation error response.
// It handles ValidationError from the validator package and returns field-level errors.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Failure("VALIDATION_ERROR", "request validation failed", valErr.Fields()))
		return
	}

	WriteJSON(w, http.StatusBadRequest, Failure("INVALID_INPUT", err.Error(), nil))
}

// WriteInvalidParameter writes a 400 response for a malformed query or path parameter.
func WriteInvalidParameter(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, Failure("INVALID_PARAMETER", message, nil))
}

// ParseID validates that the given path parameter is a positive integer id.
// If invalid, it writes a 400 Bad Request response with code INVALID_PARAMETER
// and returns false, signaling the caller to return early.
func ParseID(w http.ResponseWriter, name, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id < 1 {
		WriteInvalidParameter(w, name+" must be a positive integer: "+param)
		return 0, false
	}
	return id, true
}
