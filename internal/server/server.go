package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/db"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/queue"
	mid "github.com/gavinc318-ctrl/Nexora-graprag/internal/server/middleware"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/storage"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/util"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	oai "github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai/ollama"
	gai "github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai/openai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/query"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/rerank"
	pgxstore "github.com/gavinc318-ctrl/Nexora-graprag/pkg/store/pgx"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func newAIClient() ai.Client {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewRetrievalOllamaClient(oai.NewRetrievalOllamaClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:       util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 2)),
			RequestTimeoutMin:     int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewRetrievalOpenAIClient(gai.NewRetrievalOpenAIClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:       util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentEmbeds: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
			RequestTimeoutMin:   int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
		})
	}
}

// queryOptionsFromEnv reads the retrieval tuning knobs.
func queryOptionsFromEnv() query.Options {
	opts := query.DefaultOptions()
	opts.GraphEnabled = util.GetEnvBool("QUERY_GRAPH_ENABLED", opts.GraphEnabled)
	opts.GraphCandidates = int(util.GetEnvNumeric("QUERY_GRAPH_CANDIDATES", opts.GraphCandidates))
	opts.VectorCandidates = int(util.GetEnvNumeric("QUERY_VECTOR_CANDIDATES", opts.VectorCandidates))
	opts.RerankCandidates = int(util.GetEnvNumeric("QUERY_RERANK_CANDIDATES", opts.RerankCandidates))
	opts.TopK = int(util.GetEnvNumeric("QUERY_TOP_K", opts.TopK))
	opts.MaxContextChars = int(util.GetEnvNumeric("QUERY_MAX_CONTEXT_CHARS", opts.MaxContextChars))
	opts.PromptVariant = util.GetEnvString("QUERY_PROMPT_VARIANT", opts.PromptVariant)
	return opts
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}

	if err := queue.SetupQueues(ch, []string{queue.DeleteQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	s3 := storage.NewS3Client(ctx)

	app := &mid.App{
		DBConn:       conn,
		Queue:        ch,
		S3:           s3,
		AiClient:     newAIClient(),
		Rerank:       rerank.NewClient(util.GetEnv("RERANK_URL"), util.GetEnvDuration("RERANK_TIMEOUT", 10*time.Second)),
		ChunkStore:   pgxstore.NewChunkDBStorage(conn),
		GraphStore:   pgxstore.NewGraphDBStorage(conn),
		QueryOptions: queryOptionsFromEnv(),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
