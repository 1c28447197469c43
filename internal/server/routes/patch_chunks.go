package routes

import (
	"errors"
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"

	"github.com/labstack/echo/v4"
)

// PatchChunkHandler rewrites a chunk's text after human review. The
// chunk is re-embedded unless the caller opts out or supplies a vector.
func PatchChunkHandler(c echo.Context) error {
	type patchChunkRequest struct {
		ChunkID   string    `param:"id" validate:"required"`
		Text      string    `json:"text" validate:"required"`
		Embedding []float32 `json:"embedding,omitempty"`
		SkipEmbed bool      `json:"skip_embed,omitempty"`
	}

	type patchChunkResponse struct {
		Message string `json:"message"`
	}

	data := new(patchChunkRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, patchChunkResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, patchChunkResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	embedding := data.Embedding
	if embedding == nil && !data.SkipEmbed {
		emb, err := cc.App.AiClient.GenerateEmbedding(ctx, []byte(data.Text))
		if err != nil {
			logger.Error("[Server] Re-embed failed", "chunk_id", data.ChunkID, "err", err)
			return c.JSON(http.StatusBadGateway, patchChunkResponse{
				Message: "Embedding service unavailable",
			})
		}
		embedding = emb
	}

	err := cc.App.ChunkStore.UpdateChunkText(ctx, cc.Tenant, data.ChunkID, data.Text, embedding)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, patchChunkResponse{
			Message: "Chunk not found",
		})
	}
	if errors.Is(err, store.ErrDimensionMismatch) {
		return c.JSON(http.StatusBadRequest, patchChunkResponse{
			Message: "Embedding dimension mismatch",
		})
	}
	if err != nil {
		logger.Error("[Server] Chunk update failed", "chunk_id", data.ChunkID, "err", err)
		return c.JSON(http.StatusInternalServerError, patchChunkResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, patchChunkResponse{
		Message: "Chunk updated",
	})
}
