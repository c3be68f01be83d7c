package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(http.StatusBadRequest, "bad_request", "invalid request")
	assert.Equal(t, "bad_request: invalid request", err.Error())

	wrapped := err.WithInternal(errors.New("boom"))
	assert.Equal(t, "bad_request: invalid request (boom)", wrapped.Error())
	assert.Equal(t, "boom", errors.Unwrap(wrapped).Error())
}

func TestWithMessageDoesNotMutate(t *testing.T) {
	custom := ErrBadRequest.WithMessage("field x is required")
	assert.Equal(t, "invalid request", ErrBadRequest.Message)
	assert.Equal(t, "field x is required", custom.Message)
	assert.Equal(t, http.StatusBadRequest, custom.HTTPStatus)
	assert.Equal(t, "bad_request", custom.Code)
}

func TestErrorKindsCarryStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{ErrFilterValidation, http.StatusBadRequest},
		{ErrVectorDimMismatch, http.StatusUnprocessableEntity},
		{ErrEmptyQuery, http.StatusUnprocessableEntity},
		{ErrUpstream, http.StatusBadGateway},
		{ErrBlobUnavailable, http.StatusBadGateway},
		{ErrTaskNotFound, http.StatusNotFound},
		{ErrChunkIDInvalid, http.StatusBadRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus, tt.err.Code)
	}
}

func TestHTTPErrorHandlerShape(t *testing.T) {
	e := echo.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := HTTPErrorHandler(log)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"app error", ErrVectorDimMismatch, http.StatusUnprocessableEntity, "embedding dimension mismatch"},
		{"wrapped app error", fmt.Errorf("document 0: %w", ErrVectorDimMismatch.WithMessage("expected 4 dimensions, got 3")), http.StatusUnprocessableEntity, "expected 4 dimensions, got 3"},
		{"wrapped echo error", fmt.Errorf("render: %w", echo.NewHTTPError(http.StatusNotFound, "no such page")), http.StatusNotFound, "no such page"},
		{"echo error", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large"), http.StatusRequestEntityTooLarge, "request body too large"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "an internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["error"])
		})
	}
}
