package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeClient struct {
	response string
	err      error
}

func (f *fakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func (f *fakeClient) GenerateChat(ctx context.Context, messages []ChatMessage, opts ...GenerateOption) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) ResetMetrics()            {}
func (f *fakeClient) GetMetrics() ModelMetrics { return ModelMetrics{} }

func TestExtractQueryEntities_NormalizesConfidence(t *testing.T) {
	client := &fakeClient{
		response: `{"entities":[
			{"name":"ACME","type":"organization","confidence":"HIGH"},
			{"name":"Rome","type":"location","confidence":"certain"},
			{"name":"  ","type":"concept","confidence":"low"}
		]}`,
	}

	entities, err := ExtractQueryEntities(context.Background(), client, "acme in rome", "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	if entities[0].Confidence != "high" {
		t.Fatalf("expected high, got %q", entities[0].Confidence)
	}
	if entities[1].Confidence != "medium" {
		t.Fatalf("unknown confidence must normalize to medium, got %q", entities[1].Confidence)
	}
}

func TestExtractQueryEntities_CapsOutput(t *testing.T) {
	result := extractionResult{}
	for i := 0; i < 30; i++ {
		result.Entities = append(result.Entities, ExtractedEntity{
			Name: string(rune('a' + i)),
			Type: "concept",
		})
	}
	raw, _ := json.Marshal(result)
	client := &fakeClient{response: string(raw)}

	entities, err := ExtractQueryEntities(context.Background(), client, "many entities", "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(entities) != maxExtractedEntities {
		t.Fatalf("expected cap of %d, got %d", maxExtractedEntities, len(entities))
	}
}

func TestExtractQueryEntities_EmptyQuery(t *testing.T) {
	entities, err := ExtractQueryEntities(context.Background(), &fakeClient{}, "   ", "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entities != nil {
		t.Fatalf("expected nil entities, got %v", entities)
	}
}

func TestExtractQueryEntities_PropagatesError(t *testing.T) {
	client := &fakeClient{err: errors.New("model down")}
	_, err := ExtractQueryEntities(context.Background(), client, "query", "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestBuildEntityEmbeddingText(t *testing.T) {
	got := BuildEntityEmbeddingText("ACME", []string{"Acme Corp", "", "ACME"})
	if got != "ACME | Acme Corp" {
		t.Fatalf("unexpected embedding text: %q", got)
	}

	if got := BuildEntityEmbeddingText("Solo", nil); got != "Solo" {
		t.Fatalf("unexpected embedding text: %q", got)
	}
}
