package server

import (
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.TenantMiddleware)

	// Retrieval
	apiRoutes.POST("/query", routes.QueryHandler)

	// Document ingestion and review
	apiRoutes.POST("/documents", routes.IngestDocumentHandler)
	apiRoutes.POST("/documents/:id/versions", routes.AddVersionHandler)
	apiRoutes.GET("/documents", routes.FindDocumentsHandler)
	apiRoutes.GET("/documents/:id/chunks", routes.GetDocumentChunksHandler)
	apiRoutes.GET("/documents/:id/assets", routes.GetDocumentAssetsHandler)
	apiRoutes.PATCH("/chunks/:id", routes.PatchChunkHandler)
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler)

	// Entity review console
	apiRoutes.GET("/entities", routes.SearchEntitiesHandler)
	apiRoutes.GET("/entities/isolated", routes.ListIsolatedEntitiesHandler)
	apiRoutes.PATCH("/entities/:id", routes.PatchEntityHandler)
	apiRoutes.DELETE("/entities/:id", routes.DeactivateEntityHandler)
	apiRoutes.GET("/entities/:id/edges", routes.ListEntityEdgesHandler)
	apiRoutes.GET("/entities/:id/summary", routes.GetEntitySummaryHandler)
	apiRoutes.PUT("/entities/:id/summary", routes.PutEntitySummaryHandler)
	apiRoutes.PATCH("/edges/:id", routes.PatchEdgeHandler)
	apiRoutes.DELETE("/edges/:id", routes.DeleteEdgeHandler)

	// Administration
	apiRoutes.POST("/admin/clear", routes.ClearTenantHandler)
}
