package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
)

// maxExtractedEntities caps the extractor output; queries mentioning
// more entities than this are almost always extraction noise.
const maxExtractedEntities = 12

// ExtractedEntity is one entity mention found in a query.
type ExtractedEntity struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Aliases    []string `json:"aliases"`
	Confidence string   `json:"confidence"`
}

type extractionResult struct {
	Entities []ExtractedEntity `json:"entities"`
}

// ExtractQueryEntities asks the extraction model for entity mentions in
// the query text. Output is capped and confidence values are normalized.
// Callers are expected to treat an error as an empty result and degrade
// to vector-only retrieval.
func ExtractQueryEntities(
	ctx context.Context,
	client Client,
	queryText string,
	promptVariant string,
	opts ...GenerateOption,
) ([]ExtractedEntity, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(PromptForVariant(promptVariant), queryText)

	var result extractionResult
	genOpts := append([]GenerateOption{WithTemperature(0)}, opts...)
	err := client.GenerateCompletionWithFormat(
		ctx,
		"entity_extraction",
		"Entities mentioned in a search query",
		prompt,
		&result,
		genOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	entities := make([]ExtractedEntity, 0, len(result.Entities))
	for _, e := range result.Entities {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			continue
		}
		if e.Type == "" {
			e.Type = "concept"
		}
		e.Confidence = common.NormalizeConfidence(strings.ToLower(e.Confidence))
		entities = append(entities, e)
		if len(entities) >= maxExtractedEntities {
			break
		}
	}
	return entities, nil
}

// BuildEntityEmbeddingText joins an entity name with its aliases into
// the canonical embedding input.
func BuildEntityEmbeddingText(name string, aliases []string) string {
	parts := make([]string, 0, len(aliases)+1)
	parts = append(parts, name)
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" || alias == name {
			continue
		}
		parts = append(parts, alias)
	}
	return strings.Join(parts, " | ")
}
