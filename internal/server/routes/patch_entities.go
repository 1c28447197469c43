package routes

import (
	"errors"
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"

	"github.com/labstack/echo/v4"
)

// PatchEntityHandler applies a partial curation update to an entity.
// Omitted fields stay untouched.
func PatchEntityHandler(c echo.Context) error {
	type patchEntityRequest struct {
		EntityID    string   `param:"id" validate:"required"`
		Description *string  `json:"description,omitempty"`
		Aliases     []string `json:"aliases,omitempty"`
		Confidence  *string  `json:"confidence,omitempty"`
		IsActive    *bool    `json:"is_active,omitempty"`
	}

	type patchEntityResponse struct {
		Message string `json:"message"`
	}

	data := new(patchEntityRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, patchEntityResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, patchEntityResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	err := cc.App.GraphStore.UpdateEntity(c.Request().Context(), cc.Tenant, store.UpdateEntityParams{
		EntityID:    data.EntityID,
		Description: data.Description,
		Aliases:     data.Aliases,
		Confidence:  data.Confidence,
		IsActive:    data.IsActive,
	})
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, patchEntityResponse{
			Message: "Entity not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Entity update failed", "entity_id", data.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, patchEntityResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, patchEntityResponse{
		Message: "Entity updated",
	})
}

// DeactivateEntityHandler tombstones an entity; rows stay for evidence
// resolution but retrieval skips them.
func DeactivateEntityHandler(c echo.Context) error {
	type deactivateParams struct {
		EntityID string `param:"id" validate:"required"`
	}

	type deactivateResponse struct {
		Message string `json:"message"`
	}

	params := new(deactivateParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deactivateResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deactivateResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	err := cc.App.GraphStore.DeactivateEntity(c.Request().Context(), cc.Tenant, params.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, deactivateResponse{
			Message: "Entity not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Entity deactivation failed", "entity_id", params.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, deactivateResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deactivateResponse{
		Message: "Entity deactivated",
	})
}
