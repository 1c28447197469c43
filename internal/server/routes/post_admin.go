package routes

import (
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/storage"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ClearTenantHandler wipes every document of the calling tenant along
// with its object store prefix. The body must repeat the tenant id so
// a stray request cannot wipe a tenant by accident.
func ClearTenantHandler(c echo.Context) error {
	type clearRequest struct {
		Confirm string `json:"confirm" validate:"required"`
	}

	type clearResponse struct {
		Message     string `json:"message"`
		DocsDeleted int64  `json:"docs_deleted"`
	}

	data := new(clearRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, clearResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, clearResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	if data.Confirm != cc.Tenant.AppID {
		return c.JSON(http.StatusBadRequest, clearResponse{
			Message: "Confirmation does not match tenant id",
		})
	}

	ctx := c.Request().Context()

	deleted, err := cc.App.ChunkStore.ClearTenantDocs(ctx, cc.Tenant)
	if err != nil {
		logger.Error("[Server] Tenant clear failed", "tenant", cc.Tenant.AppID, "err", err)
		return c.JSON(http.StatusInternalServerError, clearResponse{
			Message: "Internal server error",
		})
	}

	if cc.App.S3 != nil {
		prefix := storage.TenantPrefix(cc.Tenant.AppID)
		if err := storage.DeleteFolder(ctx, cc.App.S3, prefix); err != nil {
			logger.Error("[Server] Tenant asset cleanup failed", "tenant", cc.Tenant.AppID, "err", err)
		}
	}

	logger.Warn("[Server] Tenant cleared", "tenant", cc.Tenant.AppID, "docs_deleted", deleted)
	return c.JSON(http.StatusOK, clearResponse{
		Message:     "Tenant cleared",
		DocsDeleted: deleted,
	})
}
