package routes

import (
	"errors"
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"

	"github.com/labstack/echo/v4"
)

// SearchEntitiesHandler lists entities for the review console.
func SearchEntitiesHandler(c echo.Context) error {
	type searchEntitiesQuery struct {
		Query      string `query:"query"`
		Type       string `query:"type"`
		ActiveOnly bool   `query:"active_only"`
		Limit      int    `query:"limit"`
	}

	type searchEntitiesResponse struct {
		Message  string          `json:"message"`
		Entities []common.Entity `json:"entities,omitempty"`
	}

	params := new(searchEntitiesQuery)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, searchEntitiesResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	entities, err := cc.App.GraphStore.SearchEntities(c.Request().Context(), cc.Tenant, store.SearchEntitiesParams{
		Query:      params.Query,
		Type:       params.Type,
		ActiveOnly: params.ActiveOnly,
		Limit:      params.Limit,
	})
	if err != nil {
		logger.Error("[Server] Entity search failed", "err", err)
		return c.JSON(http.StatusInternalServerError, searchEntitiesResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, searchEntitiesResponse{
		Message:  "OK",
		Entities: entities,
	})
}

// ListIsolatedEntitiesHandler lists active entities without any edge,
// the usual candidates for cleanup after heavy deletes.
func ListIsolatedEntitiesHandler(c echo.Context) error {
	type isolatedQuery struct {
		Limit int `query:"limit"`
	}

	type isolatedResponse struct {
		Message  string          `json:"message"`
		Entities []common.Entity `json:"entities,omitempty"`
	}

	params := new(isolatedQuery)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, isolatedResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	entities, err := cc.App.GraphStore.ListIsolatedEntities(c.Request().Context(), cc.Tenant, params.Limit)
	if err != nil {
		logger.Error("[Server] Isolated entity listing failed", "err", err)
		return c.JSON(http.StatusInternalServerError, isolatedResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, isolatedResponse{
		Message:  "OK",
		Entities: entities,
	})
}

// ListEntityEdgesHandler lists all edges touching one entity.
func ListEntityEdgesHandler(c echo.Context) error {
	type listEdgesParams struct {
		EntityID string `param:"id" validate:"required"`
	}

	type listEdgesResponse struct {
		Message string        `json:"message"`
		Edges   []common.Edge `json:"edges,omitempty"`
	}

	params := new(listEdgesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, listEdgesResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, listEdgesResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	edges, err := cc.App.GraphStore.ListEdgesByEntity(c.Request().Context(), cc.Tenant, params.EntityID)
	if err != nil {
		logger.Error("[Server] Edge listing failed", "entity_id", params.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, listEdgesResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, listEdgesResponse{
		Message: "OK",
		Edges:   edges,
	})
}

// GetEntitySummaryHandler returns the cached summary for an entity.
func GetEntitySummaryHandler(c echo.Context) error {
	type summaryParams struct {
		EntityID string `param:"id" validate:"required"`
	}

	type summaryResponse struct {
		Message string `json:"message"`
		Summary string `json:"summary,omitempty"`
	}

	params := new(summaryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, summaryResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, summaryResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	summary, err := cc.App.GraphStore.GetEntitySummary(c.Request().Context(), cc.Tenant, params.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, summaryResponse{
			Message: "Summary not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Summary lookup failed", "entity_id", params.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, summaryResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, summaryResponse{
		Message: "OK",
		Summary: summary,
	})
}

// PutEntitySummaryHandler stores a reviewed summary for an entity.
func PutEntitySummaryHandler(c echo.Context) error {
	type putSummaryRequest struct {
		EntityID string `param:"id" validate:"required"`
		Summary  string `json:"summary" validate:"required"`
	}

	type putSummaryResponse struct {
		Message string `json:"message"`
	}

	data := new(putSummaryRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, putSummaryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, putSummaryResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	err := cc.App.GraphStore.UpsertEntitySummary(c.Request().Context(), cc.Tenant, data.EntityID, data.Summary)
	if err != nil {
		logger.Error("[Server] Summary upsert failed", "entity_id", data.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, putSummaryResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, putSummaryResponse{
		Message: "Summary stored",
	})
}
