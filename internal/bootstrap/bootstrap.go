package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arodionov/study-assistant/internal/config"
	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
	"github.com/arodionov/study-assistant/internal/core/usecase"
	"github.com/arodionov/study-assistant/internal/infrastructure/chunking"
	"github.com/arodionov/study-assistant/internal/infrastructure/extractor"
	"github.com/arodionov/study-assistant/internal/infrastructure/llm/ollama"
	"github.com/arodionov/study-assistant/internal/infrastructure/queue/nats"
	"github.com/arodionov/study-assistant/internal/infrastructure/repository/postgres"
	"github.com/arodionov/study-assistant/internal/infrastructure/resilience"
	"github.com/arodionov/study-assistant/internal/infrastructure/storage/localfs"
	"github.com/arodionov/study-assistant/internal/infrastructure/vector/qdrant"
	"github.com/arodionov/study-assistant/internal/infrastructure/websearch/perplexity"
)

// App wires configuration, infrastructure, and use cases for both the api
// and worker processes.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue      ports.MessageQueue
	Repo       ports.DocumentRepository
	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	SearchUC   *usecase.SearchUseCase
	EvidenceUC ports.EvidenceRetriever

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Executor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(chunking.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MinChunkSize: cfg.MinChunkSize,
		Lookback:     cfg.ChunkLookback,
		CharsPerPage: cfg.CharsPerPage,
	})
	extract := extractor.New(storage)

	web := perplexity.New(cfg.WebSearchURL, cfg.WebSearchAPIKey, perplexity.Options{
		Model:              cfg.WebSearchModel,
		RequestsPerMinute:  cfg.WebSearchRPM,
		ResilienceExecutor: executor,
	})

	deps := probeDependencies(ctx, embedder, index, log)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, index, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, chunker, embedder, index, log)
	searchUC := usecase.NewSearchUseCase(embedder, index, deps, log)
	evidenceUC := usecase.NewEvidenceUseCase(searchUC, web, log)

	return &App{
		Config: cfg,
		Log:    log,
		Queue:  queue,
		Repo:   repo,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		SearchUC:   searchUC,
		EvidenceUC: evidenceUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// probeDependencies checks the embedding model and vector store once at
// startup. A missing collaborator is logged, not fatal: the service starts
// and search degrades until the next restart.
func probeDependencies(ctx context.Context, embedder ports.Embedder, index ports.VectorIndex, log *slog.Logger) domain.Dependencies {
	deps := domain.Dependencies{EmbeddingModel: true, VectorStore: true}

	if err := embedder.Ping(ctx); err != nil {
		deps.EmbeddingModel = false
		log.Warn("embedding model unreachable, search will degrade",
			slog.String("error", err.Error()))
	}
	if err := index.Ping(ctx); err != nil {
		deps.VectorStore = false
		log.Warn("vector store unreachable, search will degrade",
			slog.String("error", err.Error()))
	}
	return deps
}
