package routes

import (
	"errors"
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"

	"github.com/labstack/echo/v4"
)

// PatchEdgeHandler adjusts an edge's weight or notes during review.
func PatchEdgeHandler(c echo.Context) error {
	type patchEdgeRequest struct {
		EdgeID string   `param:"id" validate:"required"`
		Weight *float64 `json:"weight,omitempty"`
		Notes  *string  `json:"notes,omitempty"`
	}

	type patchEdgeResponse struct {
		Message string `json:"message"`
	}

	data := new(patchEdgeRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, patchEdgeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, patchEdgeResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	err := cc.App.GraphStore.UpdateEdge(c.Request().Context(), cc.Tenant, data.EdgeID, data.Weight, data.Notes)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, patchEdgeResponse{
			Message: "Edge not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Edge update failed", "edge_id", data.EdgeID, "err", err)
		return c.JSON(http.StatusInternalServerError, patchEdgeResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, patchEdgeResponse{
		Message: "Edge updated",
	})
}

// DeleteEdgeHandler removes an edge permanently.
func DeleteEdgeHandler(c echo.Context) error {
	type deleteEdgeParams struct {
		EdgeID string `param:"id" validate:"required"`
	}

	type deleteEdgeResponse struct {
		Message string `json:"message"`
	}

	params := new(deleteEdgeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteEdgeResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteEdgeResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	err := cc.App.GraphStore.DeleteEdge(c.Request().Context(), cc.Tenant, params.EdgeID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, deleteEdgeResponse{
			Message: "Edge not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Edge delete failed", "edge_id", params.EdgeID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteEdgeResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deleteEdgeResponse{
		Message: "Edge deleted",
	})
}
