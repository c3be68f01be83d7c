package query

import (
	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/auth"
)

// RegisterRoutes registers query routes
func RegisterRoutes(e *echo.Echo, h *Handler, m *auth.Middleware) {
	e.POST("/query", h.Query, m.RequireToken())
	e.POST("/query/download-first", h.DownloadFirst, m.RequireToken())
	e.POST("/query/fulltext-first", h.FulltextFirst, m.RequireToken())
}
