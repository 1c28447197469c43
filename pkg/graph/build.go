// Package graph turns entity observations reported by the ingestion
// pipeline into graph rows: deduplicated entities, chunk mentions, and
// co-occurrence edges between entities seen in the same chunk.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

// CoOccurrenceEdgeType is the edge type written for entities observed
// in the same chunk. Edges are written in both directions so one-hop
// expansion never needs a reverse scan.
const CoOccurrenceEdgeType = "co_occurs"

// coOccurrenceWeight is the weight added per shared chunk; the store
// saturates accumulated weight at 1.0.
const coOccurrenceWeight = 0.1

const defaultEmbedParallel = 4

// Observation is one entity sighting inside an ingested chunk.
// ChunkIndex addresses the chunk within the ingested version.
type Observation struct {
	Name           string   `json:"name" validate:"required"`
	Type           string   `json:"type" validate:"required"`
	Aliases        []string `json:"aliases,omitempty"`
	Description    string   `json:"description,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	Classification int      `json:"classification"`
	ChunkIndex     int      `json:"chunk_index"`
	MentionCount   int      `json:"mention_count,omitempty"`
	CharOffset     *int     `json:"char_offset,omitempty"`
	ContextSnippet string   `json:"context_snippet,omitempty"`
}

// Stats summarizes one build pass.
type Stats struct {
	Entities int `json:"entities"`
	Mentions int `json:"mentions"`
	Edges    int `json:"edges"`
}

// GraphWriter is the slice of the graph store the builder writes to.
type GraphWriter interface {
	UpsertEntity(ctx context.Context, tc tenant.Context, params store.UpsertEntityParams) (common.Entity, error)
	UpsertEdge(ctx context.Context, tc tenant.Context, params store.UpsertEdgeParams) (common.Edge, error)
	UpsertMention(ctx context.Context, tc tenant.Context, mention common.Mention) error
}

type Builder struct {
	store    GraphWriter
	ai       ai.Client
	parallel int
}

func NewBuilder(graphStore GraphWriter, aiClient ai.Client) *Builder {
	return &Builder{
		store:    graphStore,
		ai:       aiClient,
		parallel: defaultEmbedParallel,
	}
}

// entityKey collapses observations of the same logical entity before
// they hit the store's natural-key upsert.
func entityKey(name, typ string, classification int) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(strings.TrimSpace(name)), strings.ToLower(typ), classification)
}

// Build upserts entities, mentions, and co-occurrence edges for one
// ingested version. chunkIDs are the stored chunk ids in chunk_index
// order; observations reference chunks by that index. Observations
// pointing outside the chunk list are skipped with a warning rather
// than failing the whole build.
func (b *Builder) Build(
	ctx context.Context,
	tc tenant.Context,
	chunkIDs []string,
	observations []Observation,
) (Stats, error) {
	var stats Stats
	if len(observations) == 0 {
		return stats, nil
	}

	type group struct {
		params store.UpsertEntityParams
		obs    []Observation
	}

	order := []string{}
	groups := map[string]*group{}
	for _, obs := range observations {
		if obs.ChunkIndex < 0 || obs.ChunkIndex >= len(chunkIDs) {
			logger.Warn("[Graph] Observation outside chunk range", "name", obs.Name, "chunk_index", obs.ChunkIndex)
			continue
		}
		key := entityKey(obs.Name, obs.Type, obs.Classification)
		g, ok := groups[key]
		if !ok {
			g = &group{params: store.UpsertEntityParams{
				Name:           strings.TrimSpace(obs.Name),
				Type:           obs.Type,
				Classification: obs.Classification,
				Confidence:     common.NormalizeConfidence(obs.Confidence),
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.obs = append(g.obs, obs)
		g.params.Aliases = mergeAliases(g.params.Aliases, obs.Aliases)
		if g.params.Description == "" {
			g.params.Description = obs.Description
		}
	}
	if len(order) == 0 {
		return stats, nil
	}

	// Embeddings in parallel, bounded; one failed embedding degrades
	// that entity to name-only matching instead of failing the build.
	embeddings := make([][]float32, len(order))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.parallel)
	for i, key := range order {
		g := groups[key]
		eg.Go(func() error {
			text := ai.BuildEntityEmbeddingText(g.params.Name, g.params.Aliases)
			emb, err := b.ai.GenerateEmbedding(egCtx, []byte(text))
			if err != nil {
				logger.Warn("[Graph] Entity embedding failed", "name", g.params.Name, "err", err)
				return nil
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return stats, err
	}

	entityIDs := map[string]string{}
	classByID := map[string]int{}
	for i, key := range order {
		g := groups[key]
		g.params.Embedding = embeddings[i]
		entity, err := b.store.UpsertEntity(ctx, tc, g.params)
		if err != nil {
			return stats, fmt.Errorf("upsert entity %q: %w", g.params.Name, err)
		}
		entityIDs[key] = entity.EntityID
		classByID[entity.EntityID] = g.params.Classification
		stats.Entities++
	}

	// Mentions, and per-chunk entity sets for edge building.
	byChunk := map[string]map[string]bool{}
	for _, key := range order {
		g := groups[key]
		entityID := entityIDs[key]
		for _, obs := range g.obs {
			chunkID := chunkIDs[obs.ChunkIndex]
			if chunkID == "" {
				logger.Warn("[Graph] No stored chunk at index", "name", g.params.Name, "chunk_index", obs.ChunkIndex)
				continue
			}
			count := obs.MentionCount
			if count <= 0 {
				count = 1
			}
			err := b.store.UpsertMention(ctx, tc, common.Mention{
				EntityID:       entityID,
				ChunkID:        chunkID,
				MentionCount:   count,
				Confidence:     common.NormalizeConfidence(obs.Confidence),
				Classification: obs.Classification,
				CharOffset:     obs.CharOffset,
				ContextSnippet: obs.ContextSnippet,
			})
			if err != nil {
				return stats, fmt.Errorf("upsert mention: %w", err)
			}
			stats.Mentions++

			if byChunk[chunkID] == nil {
				byChunk[chunkID] = map[string]bool{}
			}
			byChunk[chunkID][entityID] = true
		}
	}

	for chunkID, set := range byChunk {
		entities := make([]string, 0, len(set))
		for id := range set {
			entities = append(entities, id)
		}
		sort.Strings(entities)

		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				// The edge inherits the stricter classification of its
				// endpoints so it never leaks a restricted entity.
				classification := classByID[entities[i]]
				if c := classByID[entities[j]]; c > classification {
					classification = c
				}
				for _, pair := range [][2]string{{entities[i], entities[j]}, {entities[j], entities[i]}} {
					_, err := b.store.UpsertEdge(ctx, tc, store.UpsertEdgeParams{
						SrcEntity:        pair[0],
						DstEntity:        pair[1],
						EdgeType:         CoOccurrenceEdgeType,
						Weight:           coOccurrenceWeight,
						Confidence:       "medium",
						Classification:   classification,
						EvidenceChunkIDs: []string{chunkID},
					})
					if err != nil {
						return stats, fmt.Errorf("upsert edge: %w", err)
					}
					stats.Edges++
				}
			}
		}
	}

	logger.Debug(
		"[Graph] Build finished",
		"entities", stats.Entities,
		"mentions", stats.Mentions,
		"edges", stats.Edges,
	)
	return stats, nil
}

func mergeAliases(existing, incoming []string) []string {
	seen := map[string]bool{}
	for _, a := range existing {
		seen[strings.ToLower(a)] = true
	}
	out := existing
	for _, a := range incoming {
		a = strings.TrimSpace(a)
		if a == "" || seen[strings.ToLower(a)] {
			continue
		}
		seen[strings.ToLower(a)] = true
		out = append(out, a)
	}
	return out
}
