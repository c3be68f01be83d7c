package enrichment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ragedhq/raged/pkg/apperror"
)

// Handler handles enrichment and worker protocol HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates a new enrichment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Status reports the enrichment state of one document
func (h *Handler) Status(c echo.Context) error {
	baseID := c.Param("baseId")
	status, err := h.service.Status(c.Request().Context(), c.QueryParam("collection"), baseID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "status": status})
}

// Stats returns task and chunk status counts
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context(),
		c.QueryParam("collection"), c.QueryParam("search"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "stats": stats})
}

type enqueueRequest struct {
	Collection string `json:"collection,omitempty"`
	BaseID     string `json:"baseId"`
}

// Enqueue re-enqueues enrichment tasks for a document
func (h *Handler) Enqueue(c echo.Context) error {
	var req enqueueRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.BaseID == "" {
		return apperror.NewBadRequest("baseId is required")
	}

	enqueued, err := h.service.EnqueueByBaseID(c.Request().Context(), req.Collection, req.BaseID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "enqueued": enqueued})
}

type clearRequest struct {
	Collection string `json:"collection,omitempty"`
	Search     string `json:"search,omitempty"`
}

// Clear deletes queued, in-flight and dead tasks
func (h *Handler) Clear(c echo.Context) error {
	var req clearRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	deleted, err := h.service.Clear(c.Request().Context(), req.Collection, req.Search)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}

type claimRequest struct {
	WorkerID     string `json:"workerId"`
	LeaseSeconds int    `json:"leaseSeconds,omitempty"`
}

// Claim leases the oldest eligible task to a worker. 204 when the
// queue is empty.
func (h *Handler) Claim(c echo.Context) error {
	var req claimRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	result, err := h.service.Claim(c.Request().Context(), req.WorkerID, req.LeaseSeconds)
	if err != nil {
		return err
	}
	if result == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":             true,
		"task":           result.Task,
		"documentChunks": result.DocumentChunks,
	})
}

// SubmitResult applies a worker's enrichment output
func (h *Handler) SubmitResult(c echo.Context) error {
	taskID, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req ResultRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if err := h.service.SubmitResult(c.Request().Context(), taskID, req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

type failRequest struct {
	Error string `json:"error"`
}

// Fail records a worker-reported task failure
func (h *Handler) Fail(c echo.Context) error {
	taskID, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req failRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.Error == "" {
		req.Error = "unspecified worker failure"
	}

	final, err := h.service.FailTask(c.Request().Context(), taskID, req.Error)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "final": final})
}

// RecoverStale releases expired leases
func (h *Handler) RecoverStale(c echo.Context) error {
	count, err := h.service.RecoverStale(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "recovered": count})
}

func taskIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.NewBadRequest("invalid task id")
	}
	return id, nil
}
