package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
)

// DefaultMinScore is the relevance floor below which a reranked
// candidate is dropped, unless that would drop everything.
const DefaultMinScore = 0.4

// Client talks to the rerank scorer, a small internal HTTP+JSON
// service. A nil Client disables reranking.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a rerank client for the given base URL. An empty
// base URL returns nil, which callers treat as "reranking disabled".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

// Result is one scored document from the rerank service.
type Result struct {
	Doc   string  `json:"doc"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

type rerankResponse struct {
	Results []Result `json:"results"`
}

// Healthy checks the service's health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("rerank health check failed: status %d", res.StatusCode)
	}
	return nil
}

// Rerank scores documents against the query and returns them in
// relevance order, best first.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents, TopK: topK})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("rerank request failed: status %d: %s", res.StatusCode, payload)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return parsed.Results, nil
}

// RerankHits reorders candidate chunks by relevance to the query and
// drops candidates scoring below minScore. If the service is
// unreachable the original order is returned unchanged; if the
// threshold would drop every candidate, the pre-threshold order wins
// over an empty result.
func (c *Client) RerankHits(
	ctx context.Context,
	query string,
	hits []common.ChunkHit,
	minScore float64,
) []common.ChunkHit {
	if c == nil || len(hits) == 0 {
		return hits
	}

	documents := make([]string, len(hits))
	for i, h := range hits {
		documents[i] = h.Text
	}

	results, err := c.Rerank(ctx, query, documents, len(hits))
	if err != nil {
		logger.Warn("[Rerank] Scorer unavailable, keeping original order", "err", err)
		return hits
	}
	if len(results) == 0 {
		return hits
	}

	// Duplicate texts map to distinct hits in first-seen order.
	byText := map[string][]int{}
	for i, doc := range documents {
		byText[doc] = append(byText[doc], i)
	}

	reranked := make([]common.ChunkHit, 0, len(hits))
	for _, r := range results {
		idxs := byText[r.Doc]
		if len(idxs) == 0 {
			continue
		}
		byText[r.Doc] = idxs[1:]

		hit := hits[idxs[0]]
		score := r.Score
		hit.Score = &score
		reranked = append(reranked, hit)
	}
	if len(reranked) == 0 {
		return hits
	}

	filtered := make([]common.ChunkHit, 0, len(reranked))
	for _, h := range reranked {
		if h.Score != nil && *h.Score < minScore {
			continue
		}
		filtered = append(filtered, h)
	}
	if len(filtered) == 0 {
		logger.Debug("[Rerank] Threshold dropped all candidates, keeping pre-threshold order",
			"min_score", minScore, "candidates", len(reranked))
		return reranked
	}
	return filtered
}
