package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragedhq/raged/pkg/apperror"
)

func invoke(t *testing.T, m *Middleware, authHeader string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := m.RequireToken()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return handler(c)
}

func TestRequireTokenDisabledWhenEmpty(t *testing.T) {
	m := &Middleware{token: ""}
	require.NoError(t, invoke(t, m, ""))
}

func TestRequireTokenMissingHeader(t *testing.T) {
	m := &Middleware{token: "secret"}
	err := invoke(t, m, "")
	require.Error(t, err)
	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestRequireTokenWrongScheme(t *testing.T) {
	m := &Middleware{token: "secret"}
	err := invoke(t, m, "Basic c2VjcmV0")
	require.Error(t, err)
}

func TestRequireTokenMismatch(t *testing.T) {
	m := &Middleware{token: "secret"}
	err := invoke(t, m, "Bearer nope")
	require.Error(t, err)
	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, "invalid_token", appErr.Code)
}

func TestRequireTokenMatch(t *testing.T) {
	m := &Middleware{token: "secret"}
	require.NoError(t, invoke(t, m, "Bearer secret"))
}
