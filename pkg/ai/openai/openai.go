package openai

import (
	"sync"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// RetrievalOpenAIClient talks to OpenAI-compatible endpoints for the
// retrieval engine. Embeddings and chat can point at different
// endpoints so a local embedding server can back a hosted chat model.
//
// Create instances with NewRetrievalOpenAIClient.
type RetrievalOpenAIClient struct {
	embeddingModel  string
	chatModel       string
	extractionModel string

	embeddingURL string
	embeddingKey string
	chatURL      string
	chatKey      string

	timeoutMin    int
	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewRetrievalOpenAIClientParams configures a new RetrievalOpenAIClient.
//
// EmbeddingModel is used for vector embeddings, ChatModel for general
// completions, and ExtractionModel for structured-output extraction.
// MaxConcurrentEmbeds bounds in-flight embedding requests and
// RequestTimeoutMin caps a single embedding call.
type NewRetrievalOpenAIClientParams struct {
	EmbeddingModel  string
	ChatModel       string
	ExtractionModel string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	MaxConcurrentEmbeds int64
	RequestTimeoutMin   int
}

// NewRetrievalOpenAIClient creates a client with separate OpenAI SDK
// clients for the embedding and chat endpoints.
//
// Example:
//
//	params := openai.NewRetrievalOpenAIClientParams{
//		EmbeddingModel:  "text-embedding-3-small",
//		ChatModel:       "gpt-4o-mini",
//		ExtractionModel: "gpt-4o-mini",
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//		EmbeddingKey:    os.Getenv("OPENAI_API_KEY"),
//	}
//	client := openai.NewRetrievalOpenAIClient(params)
func NewRetrievalOpenAIClient(
	params NewRetrievalOpenAIClientParams,
) *RetrievalOpenAIClient {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey)

	maxEmbeds := params.MaxConcurrentEmbeds
	if maxEmbeds <= 0 {
		maxEmbeds = 4
	}
	timeoutMin := params.RequestTimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}

	return &RetrievalOpenAIClient{
		embeddingModel:  params.EmbeddingModel,
		chatModel:       params.ChatModel,
		extractionModel: params.ExtractionModel,

		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,
		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,

		timeoutMin:    timeoutMin,
		embeddingLock: semaphore.NewWeighted(maxEmbeds),

		metricsLock: sync.Mutex{},
		metrics: ai.ModelMetrics{
			InputTokens:  0,
			OutputTokens: 0,
			TotalTokens:  0,
			DurationMs:   0,
		},

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
