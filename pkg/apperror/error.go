// Package apperror defines the typed error taxonomy for the server.
// Status codes are attached to error kinds here, not at call sites.
package apperror

import (
	"fmt"
	"net/http"
)

// Error represents an application error with HTTP status and error code
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   err,
		Details:    e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Internal:   e.Internal,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   e.Internal,
		Details:    details,
	}
}

// New creates a new application error
func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

// Common error definitions
var (
	// Authentication
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "authentication required")
	ErrMissingToken = New(http.StatusUnauthorized, "missing_token", "missing authorization token")
	ErrInvalidToken = New(http.StatusUnauthorized, "invalid_token", "invalid bearer token")

	// Resources
	ErrNotFound = New(http.StatusNotFound, "not_found", "resource not found")

	// Validation
	ErrBadRequest        = New(http.StatusBadRequest, "bad_request", "invalid request")
	ErrFilterValidation  = New(http.StatusBadRequest, "filter_validation", "invalid filter")
	ErrChunkIDInvalid    = New(http.StatusBadRequest, "chunk_id_invalid", "invalid chunk id")
	ErrEmptyQuery        = New(http.StatusUnprocessableEntity, "empty_query", "query must not be empty")
	ErrVectorDimMismatch = New(http.StatusUnprocessableEntity, "vector_dim_mismatch", "embedding dimension mismatch")
	ErrDocType           = New(http.StatusUnprocessableEntity, "doc_type", "unsupported document type")

	// Workers
	ErrTaskNotFound = New(http.StatusNotFound, "task_not_found", "task not found")

	// Upstream
	ErrUpstream        = New(http.StatusBadGateway, "upstream_service_error", "upstream service error")
	ErrBlobUnavailable = New(http.StatusBadGateway, "blob_store_unavailable", "blob store unavailable")

	// Server
	ErrInternal = New(http.StatusInternalServerError, "internal_error", "an internal error occurred")
)

// NewBadRequest creates a bad request error with a custom message
func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewFilterValidation creates a filter validation error with a custom message
func NewFilterValidation(message string) *Error {
	return ErrFilterValidation.WithMessage(message)
}

// NewUpstream creates an upstream service error with a message and wrapped cause
func NewUpstream(message string, err error) *Error {
	return ErrUpstream.WithMessage(message).WithInternal(err)
}

// NewInternal creates an internal error with a message and optional wrapped error
func NewInternal(message string, err error) *Error {
	return &Error{
		HTTPStatus: http.StatusInternalServerError,
		Code:       "internal_error",
		Message:    message,
		Internal:   err,
	}
}
