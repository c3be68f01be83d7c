package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Handler handles health check requests
type Handler struct {
	pool    *pgxpool.Pool
	startAt time.Time
}

// NewHandler creates a new health handler
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{
		pool:    pool,
		startAt: time.Now(),
	}
}

// Healthz is the liveness probe. Always 200, never authenticated.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// Ready returns readiness based on database connectivity
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"ok":      false,
			"message": "database connection failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":     true,
		"uptime": time.Since(h.startAt).String(),
	})
}
