package routes

import (
	"errors"
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/storage"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/chunkmeta"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"

	"github.com/labstack/echo/v4"
)

// FindDocumentsHandler looks documents up by a title or source
// substring for the review console.
func FindDocumentsHandler(c echo.Context) error {
	type findDocumentsQuery struct {
		Hint  string `query:"hint"`
		Limit int    `query:"limit"`
	}

	type findDocumentsResponse struct {
		Message   string            `json:"message"`
		Documents []common.Document `json:"documents,omitempty"`
	}

	params := new(findDocumentsQuery)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, findDocumentsResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	docs, err := cc.App.ChunkStore.FindDocsByDirHint(c.Request().Context(), cc.Tenant, params.Hint, params.Limit)
	if err != nil {
		logger.Error("[Server] Document lookup failed", "hint", params.Hint, "err", err)
		return c.JSON(http.StatusInternalServerError, findDocumentsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, findDocumentsResponse{
		Message:   "OK",
		Documents: docs,
	})
}

// GetDocumentChunksHandler lists the chunks of a document's latest
// version, optionally filtered to one page via the chunk meta header.
func GetDocumentChunksHandler(c echo.Context) error {
	type getChunksQuery struct {
		DocID string `param:"id" validate:"required"`
		Page  int    `query:"page"`
	}

	type getChunksResponse struct {
		Message   string         `json:"message"`
		VersionID string         `json:"version_id,omitempty"`
		VersionNo int            `json:"version_no,omitempty"`
		Chunks    []common.Chunk `json:"chunks,omitempty"`
	}

	params := new(getChunksQuery)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getChunksResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getChunksResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	version, err := cc.App.ChunkStore.GetLatestVersion(ctx, cc.Tenant, params.DocID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, getChunksResponse{
			Message: "Document not found",
		})
	}
	if err != nil {
		logger.Error("[Server] Version lookup failed", "doc_id", params.DocID, "err", err)
		return c.JSON(http.StatusInternalServerError, getChunksResponse{
			Message: "Internal server error",
		})
	}

	chunks, err := cc.App.ChunkStore.ListChunks(ctx, cc.Tenant, version.VersionID)
	if err != nil {
		logger.Error("[Server] Chunk listing failed", "doc_id", params.DocID, "err", err)
		return c.JSON(http.StatusInternalServerError, getChunksResponse{
			Message: "Internal server error",
		})
	}

	if params.Page > 0 {
		filtered := make([]common.Chunk, 0, len(chunks))
		for _, ch := range chunks {
			if chunkmeta.PageFromText(ch.Text) == params.Page {
				filtered = append(filtered, ch)
			}
		}
		chunks = filtered
	}

	return c.JSON(http.StatusOK, getChunksResponse{
		Message:   "OK",
		VersionID: version.VersionID,
		VersionNo: version.VersionNo,
		Chunks:    chunks,
	})
}

// GetDocumentAssetsHandler lists a document's stored object keys, or
// returns one object's bytes when key is given.
func GetDocumentAssetsHandler(c echo.Context) error {
	type getAssetsQuery struct {
		DocID string `param:"id" validate:"required"`
		Key   string `query:"key"`
	}

	type getAssetsResponse struct {
		Message string   `json:"message"`
		Keys    []string `json:"keys,omitempty"`
	}

	params := new(getAssetsQuery)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getAssetsResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getAssetsResponse{
			Message: "Invalid request",
		})
	}

	cc := c.(*middleware.AppContext)
	if cc.App.S3 == nil {
		return c.JSON(http.StatusNotImplemented, getAssetsResponse{
			Message: "Object storage not configured",
		})
	}
	ctx := c.Request().Context()

	// The document must resolve inside the tenant's scope before any
	// object access; object keys alone carry no row level security.
	if _, err := cc.App.ChunkStore.FetchDocMeta(ctx, cc.Tenant, params.DocID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getAssetsResponse{
				Message: "Document not found",
			})
		}
		logger.Error("[Server] Document lookup failed", "doc_id", params.DocID, "err", err)
		return c.JSON(http.StatusInternalServerError, getAssetsResponse{
			Message: "Internal server error",
		})
	}

	prefix := storage.DocumentPrefix(cc.Tenant.AppID, params.DocID)

	if params.Key != "" {
		blob, err := storage.GetFile(ctx, cc.App.S3, prefix+params.Key)
		if err != nil {
			logger.Error("[Server] Asset fetch failed", "doc_id", params.DocID, "key", params.Key, "err", err)
			return c.JSON(http.StatusNotFound, getAssetsResponse{
				Message: "Asset not found",
			})
		}
		return c.Blob(http.StatusOK, "application/octet-stream", blob)
	}

	keys, err := storage.ListFilesWithPrefix(ctx, cc.App.S3, prefix)
	if err != nil {
		logger.Error("[Server] Asset listing failed", "doc_id", params.DocID, "err", err)
		return c.JSON(http.StatusInternalServerError, getAssetsResponse{
			Message: "Internal server error",
		})
	}
	for i, key := range keys {
		keys[i] = key[len(prefix):]
	}

	return c.JSON(http.StatusOK, getAssetsResponse{
		Message: "OK",
		Keys:    keys,
	})
}
