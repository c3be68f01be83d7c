package enrichment

import (
	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/auth"
)

// RegisterRoutes registers the enrichment and worker protocol routes
func RegisterRoutes(e *echo.Echo, h *Handler, m *auth.Middleware) {
	g := e.Group("/enrichment", m.RequireToken())
	g.GET("/status/:baseId", h.Status)
	g.GET("/stats", h.Stats)
	g.POST("/enqueue", h.Enqueue)
	g.POST("/clear", h.Clear)

	tasks := e.Group("/internal/tasks", m.RequireToken())
	tasks.POST("/claim", h.Claim)
	tasks.POST("/:id/result", h.SubmitResult)
	tasks.POST("/:id/fail", h.Fail)
	tasks.POST("/recover-stale", h.RecoverStale)
}
