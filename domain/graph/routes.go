package graph

import (
	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/auth"
)

// RegisterRoutes registers graph routes
func RegisterRoutes(e *echo.Echo, h *Handler, m *auth.Middleware) {
	e.GET("/graph/entity/:name", h.Entity, m.RequireToken())
}
