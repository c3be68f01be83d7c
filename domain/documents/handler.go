package documents

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler handles document HTTP requests
type Handler struct {
	repo *Repository
}

// NewHandler creates a new documents handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListCollections returns per-collection document and chunk counts
func (h *Handler) ListCollections(c echo.Context) error {
	stats, err := h.repo.ListCollections(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":          true,
		"collections": stats,
	})
}
