package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// RetrievalOllamaClient implements the ai.Client interface against an
// Ollama server. It covers embeddings, completions and structured
// extraction using locally-hosted models.
type RetrievalOllamaClient struct {
	embeddingModel  string
	chatModel       string
	extractionModel string

	timeoutMin int
	reqLock    *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewRetrievalOllamaClientParams contains configuration options for creating
// a new RetrievalOllamaClient.
type NewRetrievalOllamaClientParams struct {
	EmbeddingModel  string
	ChatModel       string
	ExtractionModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	RequestTimeoutMin     int
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewRetrievalOllamaClient creates a new Ollama-backed AI client. It connects
// to the Ollama server at the given BaseURL (or the default if empty) and
// uses the configured models for the different operations.
func NewRetrievalOllamaClient(
	params NewRetrievalOllamaClientParams,
) (*RetrievalOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	maxReqs := params.MaxConcurrentRequests
	if maxReqs <= 0 {
		maxReqs = 2
	}
	timeoutMin := params.RequestTimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}

	return &RetrievalOllamaClient{
		embeddingModel:  params.EmbeddingModel,
		chatModel:       params.ChatModel,
		extractionModel: params.ExtractionModel,

		timeoutMin: timeoutMin,
		reqLock:    semaphore.NewWeighted(maxReqs),

		metricsLock: sync.Mutex{},
		metrics: ai.ModelMetrics{
			InputTokens:  0,
			OutputTokens: 0,
			TotalTokens:  0,
			DurationMs:   0,
		},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
}
