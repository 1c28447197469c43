package query

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/util"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/chunkmeta"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = errors.New("query text is empty")

// Query runs the full pipeline for one request. The vector path is
// load-bearing: its failure fails the request. The graph path is
// best-effort: any failure there degrades to vector-only retrieval.
func (e *Engine) Query(ctx context.Context, tc tenant.Context, queryText string) (Result, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return Result{}, ErrEmptyQuery
	}

	augmented := queryText
	var graphHits []common.ChunkHit
	var seeds []EntityMatch

	if e.opts.GraphEnabled {
		gh, aq, sd, err := e.graphPath(ctx, tc, queryText)
		if err != nil {
			logger.Warn("[Query] Graph path failed, degrading to vector-only",
				"request", tc.RequestID, "err", err)
		} else {
			graphHits, augmented, seeds = gh, aq, sd
		}
	}

	embedding, err := e.aiClient.GenerateEmbedding(ctx, []byte(augmented))
	if err != nil {
		return Result{}, err
	}
	vectorHits, err := e.chunks.SearchChunks(ctx, tc, augmented, embedding, e.opts.VectorCandidates)
	if err != nil {
		return Result{}, err
	}

	candidates := unionHits(graphHits, vectorHits)
	if len(candidates) > e.opts.RerankCandidates {
		candidates = candidates[:e.opts.RerankCandidates]
	}

	merged := chunkmeta.MergeHitsByPage(candidates, e.opts.MergeMaxChars)

	// A request already past its deadline skips the rerank round-trip
	// and serves the merged candidates as-is.
	if e.scorer != nil && ctx.Err() == nil {
		merged = e.scorer.RerankHits(ctx, queryText, merged, e.opts.MinRerankScore)
	}

	if len(merged) > e.opts.TopK {
		merged = merged[:e.opts.TopK]
	}

	result := Result{
		Context:        assembleContext(merged, e.opts.MaxContextChars),
		Hits:           merged,
		AugmentedQuery: augmented,
		Seeds:          seeds,
	}

	result.Sources = e.resolveSources(ctx, tc, merged)
	return result, nil
}

// graphPath resolves query entities against the graph and returns
// graph-sourced chunk candidates, the augmented query, and the seeds.
func (e *Engine) graphPath(
	ctx context.Context,
	tc tenant.Context,
	queryText string,
) ([]common.ChunkHit, string, []EntityMatch, error) {
	extracted, err := ai.ExtractQueryEntities(ctx, e.aiClient, queryText, e.opts.PromptVariant)
	if err != nil {
		return nil, "", nil, err
	}
	if len(extracted) == 0 {
		return nil, queryText, nil, nil
	}

	seeds := []EntityMatch{}
	seenSeeds := map[string]bool{}
	for _, ent := range extracted {
		matches, err := e.matchEntity(ctx, tc, ent)
		if err != nil {
			return nil, "", nil, err
		}
		for _, m := range matches {
			if seenSeeds[m.EntityID] {
				continue
			}
			seenSeeds[m.EntityID] = true
			seeds = append(seeds, m)
		}
	}
	if len(seeds) == 0 {
		return nil, queryText, nil, nil
	}

	seedIDs := make([]string, len(seeds))
	names := make([]string, 0, len(seeds))
	seenNames := map[string]bool{}
	for i, s := range seeds {
		seedIDs[i] = s.EntityID
		if key := strings.ToLower(s.Name); !seenNames[key] {
			seenNames[key] = true
			names = append(names, s.Name)
		}
	}

	neighbors, err := e.graph.GetNeighborEntities(ctx, tc, seedIDs, "", e.opts.NeighborLimit)
	if err != nil {
		return nil, "", nil, err
	}

	// Neighbors widen the augmented query only. Chunk candidates are
	// fetched for the seed entities alone, so a chunk mentioning just a
	// one-hop neighbor never enters the graph path.
	for _, n := range neighbors {
		if key := strings.ToLower(n.DstName); !seenNames[key] {
			seenNames[key] = true
			names = append(names, n.DstName)
		}
	}

	augmented := queryText + "\n\n" + strings.Join(names, ", ")

	chunkScores, err := e.graph.ListChunkIDsByEntities(ctx, tc, seedIDs, e.opts.GraphCandidates)
	if err != nil {
		return nil, "", nil, err
	}
	if len(chunkScores) == 0 {
		return nil, augmented, seeds, nil
	}

	chunkIDs := make([]string, len(chunkScores))
	for i, cs := range chunkScores {
		chunkIDs[i] = cs.ChunkID
	}
	fetched, err := e.chunks.GetChunksByIDs(ctx, tc, chunkIDs)
	if err != nil {
		return nil, "", nil, err
	}

	// Reorder fetched chunks into score order; ids filtered out by the
	// tenant's clearance are simply absent.
	byID := make(map[string]common.ChunkHit, len(fetched))
	for _, h := range fetched {
		byID[h.ChunkID] = h
	}
	hits := make([]common.ChunkHit, 0, len(chunkScores))
	for _, cs := range chunkScores {
		hit, ok := byID[cs.ChunkID]
		if !ok {
			continue
		}
		score := cs.Score
		hit.Score = &score
		hits = append(hits, hit)
	}

	logger.Debug("[Query] Graph path resolved", "request", tc.RequestID,
		"seeds", len(seeds), "neighbors", len(neighbors), "chunks", len(hits))
	return hits, augmented, seeds, nil
}

// matchEntity resolves one extracted entity with exact-first hybrid
// matching. Embedding search only runs when exact matches leave room,
// and an exact match always wins an id collision.
func (e *Engine) matchEntity(ctx context.Context, tc tenant.Context, ent ai.ExtractedEntity) ([]EntityMatch, error) {
	limit := e.opts.EntityMatchLimit

	exact, err := e.graph.FindByNameOrAlias(ctx, tc, ent.Name, limit)
	if err != nil {
		return nil, err
	}

	matches := make([]EntityMatch, 0, limit)
	seen := map[string]bool{}
	for _, en := range exact {
		seen[en.EntityID] = true
		matches = append(matches, EntityMatch{
			EntityID: en.EntityID,
			Name:     en.Name,
			Type:     en.Type,
			Score:    exactMatchBase + occurrenceBoost(en.OccurrenceCount),
			Exact:    true,
		})
	}

	if len(matches) < limit {
		text := ai.BuildEntityEmbeddingText(ent.Name, ent.Aliases)
		embedding, err := e.aiClient.GenerateEmbedding(ctx, []byte(text))
		if err != nil {
			return nil, err
		}
		similar, err := e.graph.FindByEmbedding(ctx, tc, embedding, limit, nil)
		if err != nil {
			return nil, err
		}
		for _, sim := range similar {
			if seen[sim.EntityID] {
				continue
			}
			seen[sim.EntityID] = true
			matches = append(matches, EntityMatch{
				EntityID: sim.EntityID,
				Name:     sim.Name,
				Type:     sim.Type,
				Score:    embeddingSimWeight*sim.Similarity + occurrenceBoost(sim.OccurrenceCount),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func occurrenceBoost(occurrenceCount int) float64 {
	if occurrenceCount < 0 {
		occurrenceCount = 0
	}
	return occurrenceWeight * math.Log(float64(occurrenceCount)+1)
}

// unionHits merges the graph and vector candidate lists, graph first,
// keeping the first occurrence of every chunk id.
func unionHits(graphHits, vectorHits []common.ChunkHit) []common.ChunkHit {
	out := make([]common.ChunkHit, 0, len(graphHits)+len(vectorHits))
	seen := map[string]bool{}
	for _, h := range graphHits {
		if seen[h.ChunkID] {
			continue
		}
		seen[h.ChunkID] = true
		out = append(out, h)
	}
	for _, h := range vectorHits {
		if seen[h.ChunkID] {
			continue
		}
		seen[h.ChunkID] = true
		out = append(out, h)
	}
	return out
}

func assembleContext(hits []common.ChunkHit, maxChars int) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return util.TruncateWithMarker(strings.Join(texts, "\n\n"), maxChars, contextTruncationMarker)
}

func (e *Engine) resolveSources(ctx context.Context, tc tenant.Context, hits []common.ChunkHit) []common.DocSource {
	docIDs := []string{}
	seen := map[string]bool{}
	for _, h := range hits {
		if h.DocID == "" || seen[h.DocID] {
			continue
		}
		seen[h.DocID] = true
		docIDs = append(docIDs, h.DocID)
	}
	if len(docIDs) == 0 {
		return nil
	}

	byID, err := e.chunks.FetchDocSources(ctx, tc, docIDs)
	if err != nil {
		logger.Warn("[Query] Source resolution failed", "request", tc.RequestID, "err", err)
		return nil
	}

	sources := make([]common.DocSource, 0, len(docIDs))
	for _, id := range docIDs {
		if src, ok := byID[id]; ok {
			sources = append(sources, src)
		}
	}
	return sources
}
