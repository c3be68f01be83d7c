package documents

import (
	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/auth"
)

// RegisterRoutes registers document routes
func RegisterRoutes(e *echo.Echo, h *Handler, m *auth.Middleware) {
	e.GET("/collections", h.ListCollections, m.RequireToken())
}
