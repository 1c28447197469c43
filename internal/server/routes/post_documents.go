package routes

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/storage"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/graph"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"

	"github.com/labstack/echo/v4"
)

const embedParallel = 4

type ingestChunk struct {
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text" validate:"required"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// toChunkInputs fills index gaps with the list position and embeds
// chunks the caller did not embed.
func toChunkInputs(ctx context.Context, aiClient ai.Client, chunks []ingestChunk) ([]common.ChunkInput, error) {
	inputs := make([]common.ChunkInput, len(chunks))
	for i, ch := range chunks {
		idx := ch.ChunkIndex
		if idx == 0 && i != 0 {
			idx = i
		}
		inputs[i] = common.ChunkInput{
			ChunkIndex: idx,
			Text:       ch.Text,
			Embedding:  ch.Embedding,
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(embedParallel)
	for i := range inputs {
		if inputs[i].Embedding != nil {
			continue
		}
		eg.Go(func() error {
			emb, err := aiClient.GenerateEmbedding(egCtx, []byte(inputs[i].Text))
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", inputs[i].ChunkIndex, err)
			}
			inputs[i].Embedding = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

func contentHash(chunks []common.ChunkInput) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// chunkIDsByIndex loads the stored chunks of a version and returns
// their ids positioned by chunk_index, for observation resolution.
func chunkIDsByIndex(ctx context.Context, app *middleware.App, tc tenant.Context, versionID string) ([]string, error) {
	stored, err := app.ChunkStore.ListChunks(ctx, tc, versionID)
	if err != nil {
		return nil, err
	}
	maxIdx := -1
	for _, ch := range stored {
		if ch.ChunkIndex > maxIdx {
			maxIdx = ch.ChunkIndex
		}
	}
	ids := make([]string, maxIdx+1)
	for _, ch := range stored {
		ids[ch.ChunkIndex] = ch.ChunkID
	}
	return ids, nil
}

// archivePayload keeps the raw ingest request next to the document's
// other assets so reviewers can audit what was submitted. Best effort.
func archivePayload(ctx context.Context, app *middleware.App, tc tenant.Context, docID string, name string, payload any) {
	if app.S3 == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	key := storage.DocumentPrefix(tc.AppID, docID) + name
	if err := storage.PutFile(ctx, app.S3, key, "application/json", bytes.NewReader(raw)); err != nil {
		logger.Warn("[Server] Payload archive failed", "key", key, "err", err)
	}
}

// IngestDocumentHandler stores a pre-parsed document: metadata, first
// version, chunk rows (embedding any chunks submitted without vectors),
// and optionally the entity observations reported by the parser.
func IngestDocumentHandler(c echo.Context) error {
	type ingestRequest struct {
		Title          string              `json:"title" validate:"required"`
		SourceURI      string              `json:"source_uri"`
		Classification int                 `json:"classification"`
		ParserVer      string              `json:"parser_ver"`
		EmbedModel     string              `json:"embed_model"`
		Chunks         []ingestChunk       `json:"chunks" validate:"required,min=1,dive"`
		Entities       []graph.Observation `json:"entities,omitempty"`
	}

	type ingestResponse struct {
		Message    string       `json:"message"`
		DocID      string       `json:"doc_id,omitempty"`
		Chunks     int          `json:"chunks,omitempty"`
		GraphStats *graph.Stats `json:"graph,omitempty"`
	}

	data := new(ingestRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	app := cc.App
	ctx := c.Request().Context()

	inputs, err := toChunkInputs(ctx, app.AiClient, data.Chunks)
	if err != nil {
		logger.Error("[Server] Chunk embedding failed", "err", err)
		return c.JSON(http.StatusBadGateway, ingestResponse{
			Message: "Embedding service unavailable",
		})
	}

	docID, err := app.ChunkStore.IngestDocument(ctx, cc.Tenant, store.IngestDocumentParams{
		Title:          data.Title,
		SourceURI:      data.SourceURI,
		Classification: data.Classification,
		ParserVer:      data.ParserVer,
		EmbedModel:     data.EmbedModel,
		ContentHash:    contentHash(inputs),
		Chunks:         inputs,
	})
	if errors.Is(err, store.ErrDimensionMismatch) {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Embedding dimension mismatch",
		})
	}
	if err != nil {
		logger.Error("[Server] Ingest failed", "title", data.Title, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	archivePayload(ctx, app, cc.Tenant, docID, "ingest-v1.json", data)

	resp := ingestResponse{
		Message: "Document ingested",
		DocID:   docID,
		Chunks:  len(inputs),
	}

	if len(data.Entities) > 0 {
		version, err := app.ChunkStore.GetLatestVersion(ctx, cc.Tenant, docID)
		if err != nil {
			logger.Error("[Server] Version lookup after ingest failed", "doc_id", docID, "err", err)
			return c.JSON(http.StatusInternalServerError, ingestResponse{
				Message: "Internal server error",
			})
		}
		ids, err := chunkIDsByIndex(ctx, app, cc.Tenant, version.VersionID)
		if err != nil {
			logger.Error("[Server] Chunk listing after ingest failed", "doc_id", docID, "err", err)
			return c.JSON(http.StatusInternalServerError, ingestResponse{
				Message: "Internal server error",
			})
		}

		builder := graph.NewBuilder(app.GraphStore, app.AiClient)
		stats, err := builder.Build(ctx, cc.Tenant, ids, data.Entities)
		if err != nil {
			// The document is stored; report the partial graph rather
			// than failing the whole ingest.
			logger.Error("[Server] Graph build failed", "doc_id", docID, "err", err)
		}
		resp.GraphStats = &stats
	}

	return c.JSON(http.StatusOK, resp)
}

// AddVersionHandler appends a re-parse/re-chunking pass to a document.
func AddVersionHandler(c echo.Context) error {
	type addVersionRequest struct {
		DocID      string              `param:"id" validate:"required"`
		VersionNo  int                 `json:"version_no"`
		ParserVer  string              `json:"parser_ver"`
		EmbedModel string              `json:"embed_model"`
		Chunks     []ingestChunk       `json:"chunks" validate:"required,min=1,dive"`
		Entities   []graph.Observation `json:"entities,omitempty"`
	}

	type addVersionResponse struct {
		Message    string       `json:"message"`
		VersionID  string       `json:"version_id,omitempty"`
		Chunks     int          `json:"chunks,omitempty"`
		GraphStats *graph.Stats `json:"graph,omitempty"`
	}

	data := new(addVersionRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, addVersionResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, addVersionResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	app := cc.App
	ctx := c.Request().Context()

	inputs, err := toChunkInputs(ctx, app.AiClient, data.Chunks)
	if err != nil {
		logger.Error("[Server] Chunk embedding failed", "err", err)
		return c.JSON(http.StatusBadGateway, addVersionResponse{
			Message: "Embedding service unavailable",
		})
	}

	versionID, err := app.ChunkStore.AddVersion(ctx, cc.Tenant, store.AddVersionParams{
		DocID:       data.DocID,
		VersionNo:   data.VersionNo,
		ContentHash: contentHash(inputs),
		ParserVer:   data.ParserVer,
		EmbedModel:  data.EmbedModel,
		Chunks:      inputs,
	})
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, addVersionResponse{
			Message: "Document not found",
		})
	}
	if errors.Is(err, store.ErrDimensionMismatch) {
		return c.JSON(http.StatusBadRequest, addVersionResponse{
			Message: "Embedding dimension mismatch",
		})
	}
	if err != nil {
		logger.Error("[Server] Add version failed", "doc_id", data.DocID, "err", err)
		return c.JSON(http.StatusInternalServerError, addVersionResponse{
			Message: "Internal server error",
		})
	}

	archivePayload(ctx, app, cc.Tenant, data.DocID, fmt.Sprintf("version-%s.json", versionID), data)

	resp := addVersionResponse{
		Message:   "Version added",
		VersionID: versionID,
		Chunks:    len(inputs),
	}

	if len(data.Entities) > 0 {
		ids, err := chunkIDsByIndex(ctx, app, cc.Tenant, versionID)
		if err != nil {
			logger.Error("[Server] Chunk listing after version add failed", "doc_id", data.DocID, "err", err)
			return c.JSON(http.StatusInternalServerError, addVersionResponse{
				Message: "Internal server error",
			})
		}

		builder := graph.NewBuilder(app.GraphStore, app.AiClient)
		stats, err := builder.Build(ctx, cc.Tenant, ids, data.Entities)
		if err != nil {
			logger.Error("[Server] Graph build failed", "doc_id", data.DocID, "err", err)
		}
		resp.GraphStats = &stats
	}

	return c.JSON(http.StatusOK, resp)
}
