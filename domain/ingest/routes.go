package ingest

import (
	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/auth"
)

// RegisterRoutes registers ingestion routes
func RegisterRoutes(e *echo.Echo, h *Handler, m *auth.Middleware) {
	e.POST("/ingest", h.Ingest, m.RequireToken())
}
