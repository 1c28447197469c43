package routes

import (
	"net/http"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/query"

	"github.com/labstack/echo/v4"
)

// QueryHandler runs the hybrid retrieval pipeline for one query.
func QueryHandler(c echo.Context) error {
	type queryRequest struct {
		Query            string `json:"query" validate:"required"`
		GraphEnabled     *bool  `json:"graph_enabled,omitempty"`
		TopK             int    `json:"top_k,omitempty"`
		GraphCandidates  int    `json:"graph_candidates,omitempty"`
		VectorCandidates int    `json:"vector_candidates,omitempty"`
		RerankCandidates int    `json:"rerank_candidates,omitempty"`
	}

	type queryResponse struct {
		Message        string              `json:"message"`
		Context        string              `json:"context,omitempty"`
		Hits           []common.ChunkHit   `json:"hits,omitempty"`
		Sources        []common.DocSource  `json:"sources,omitempty"`
		AugmentedQuery string              `json:"augmented_query,omitempty"`
		Seeds          []query.EntityMatch `json:"seeds,omitempty"`
		Metrics        *ai.ModelMetrics    `json:"metrics,omitempty"`
	}

	data := new(queryRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	app := cc.App

	opts := app.QueryOptions
	if data.GraphEnabled != nil {
		opts.GraphEnabled = *data.GraphEnabled
	}
	if data.TopK > 0 {
		opts.TopK = data.TopK
	}
	if data.GraphCandidates > 0 {
		opts.GraphCandidates = data.GraphCandidates
	}
	if data.VectorCandidates > 0 {
		opts.VectorCandidates = data.VectorCandidates
	}
	if data.RerankCandidates > 0 {
		opts.RerankCandidates = data.RerankCandidates
	}

	engine := query.NewEngine(app.ChunkStore, app.GraphStore, app.AiClient, app.Rerank, opts)

	ctx := c.Request().Context()
	result, err := engine.Query(ctx, cc.Tenant, data.Query)
	if err == query.ErrEmptyQuery {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Query must not be empty",
		})
	}
	if err != nil {
		logger.Error("[Server] Query failed", "request_id", cc.Tenant.RequestID, "err", err)
		return c.JSON(http.StatusInternalServerError, queryResponse{
			Message: "Internal server error",
		})
	}

	metrics := app.AiClient.GetMetrics()
	return c.JSON(http.StatusOK, queryResponse{
		Message:        "OK",
		Context:        result.Context,
		Hits:           result.Hits,
		Sources:        result.Sources,
		AugmentedQuery: result.AugmentedQuery,
		Seeds:          result.Seeds,
		Metrics:        &metrics,
	})
}
