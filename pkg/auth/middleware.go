// Package auth provides bearer-token authentication middleware.
package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/pkg/apperror"
)

// Module provides the auth middleware via fx
var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

// Middleware enforces the static API bearer token. An empty configured
// token disables enforcement.
type Middleware struct {
	token string
}

// NewMiddleware creates the auth middleware from config
func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{token: cfg.Auth.APIToken}
}

// RequireToken returns an echo middleware validating the Authorization
// bearer token with a constant-time compare.
func (m *Middleware) RequireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.token == "" {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apperror.ErrMissingToken
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return apperror.ErrInvalidToken
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
				return apperror.ErrInvalidToken
			}

			return next(c)
		}
	}
}
