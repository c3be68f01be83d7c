package ingest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/apperror"
)

// Handler handles ingestion HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates a new ingest handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Ingest runs the ingestion pipeline for a batch of items
func (h *Handler) Ingest(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	resp, err := h.service.Ingest(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
