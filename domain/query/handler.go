package query

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/apperror"
)

// Handler handles query HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates a new query handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Query runs a search and returns ranked results.
func (h *Handler) Query(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	resp, err := h.service.Run(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// DownloadFirst returns the raw bytes of the top-ranked document.
func (h *Handler) DownloadFirst(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	download, err := h.service.DownloadFirst(c.Request().Context(), req)
	if err != nil {
		return err
	}

	c.Response().Header().Set("X-Document-Base-Id", download.BaseID)
	return c.Blob(http.StatusOK, download.ContentType, download.Data)
}

// FulltextFirst returns the concatenated chunk text of the top-ranked
// document.
func (h *Handler) FulltextFirst(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	doc, err := h.service.FulltextFirst(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "document": doc})
}
