package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/queue"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"

	"github.com/labstack/echo/v4"
)

// DeleteDocumentHandler queues a document for deletion. The actual
// delete runs on the worker so the chunk removal, object cleanup, and
// graph compensation happen behind a per-document lease.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentParams struct {
		DocID string `param:"id" validate:"required"`
	}

	type deleteDocumentResponse struct {
		Message string `json:"message"`
		DocID   string `json:"doc_id,omitempty"`
	}

	params := new(deleteDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	if _, err := cc.App.ChunkStore.FetchDocMeta(ctx, cc.Tenant, params.DocID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, deleteDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("[Server] Document lookup failed", "doc_id", params.DocID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.DeleteMessage{
		DocID:     params.DocID,
		AppID:     cc.Tenant.AppID,
		Clearance: cc.Tenant.Clearance,
		RequestID: cc.Tenant.RequestID,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	if err := queue.PublishFIFO(cc.App.Queue, queue.DeleteQueue, msg); err != nil {
		logger.Error("[Server] Failed to publish delete message", "doc_id", params.DocID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, deleteDocumentResponse{
		Message: "Delete queued",
		DocID:   params.DocID,
	})
}
