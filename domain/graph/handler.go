package graph

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/mathutil"
)

// Handler handles graph HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates a new graph handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Entity returns an entity and its neighbourhood
func (h *Handler) Entity(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return apperror.NewBadRequest("entity name is required")
	}

	collection := c.QueryParam("collection")
	if collection == "" {
		collection = "default"
	}

	limits := DefaultLimits()
	if raw := c.QueryParam("depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 1 {
			return apperror.NewBadRequest("depth must be a positive integer")
		}
		limits.MaxDepth = mathutil.ClampInt(depth, 1, 5)
	}

	expansion, err := h.service.Expand(c.Request().Context(), collection, name, limits)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "graph": expansion})
}
