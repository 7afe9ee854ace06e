package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
)

// SearchUseCase answers similarity queries over the document index. It is
// built to degrade: when the embedding model or the vector store is down, or
// a query fails at runtime, search reports no results instead of erroring,
// so callers can fall through to other evidence sources.
type SearchUseCase struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	deps     domain.Dependencies
	log      *slog.Logger
}

func NewSearchUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	deps domain.Dependencies,
	log *slog.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		embedder: embedder,
		index:    index,
		deps:     deps,
		log:      log,
	}
}

// HasDocuments reports whether the index holds at least one chunk. It never
// fails: an unreachable index counts as having no documents.
func (uc *SearchUseCase) HasDocuments(ctx context.Context) bool {
	if !uc.deps.VectorStore {
		return false
	}
	stats, err := uc.index.Stats(ctx)
	if err != nil {
		uc.log.Warn("index stats unavailable", slog.String("error", err.Error()))
		return false
	}
	return stats.TotalChunks > 0
}

func (uc *SearchUseCase) Search(ctx context.Context, req ports.SearchRequest) ([]domain.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("empty query"))
	}
	if req.SimilarityThreshold < 0 || req.SimilarityThreshold > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search",
			fmt.Errorf("similarity threshold %v outside [0, 1]", req.SimilarityThreshold))
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	if !uc.deps.SearchReady() {
		uc.log.Warn("search skipped, dependencies unavailable",
			slog.Bool("embedding_model", uc.deps.EmbeddingModel),
			slog.Bool("vector_store", uc.deps.VectorStore))
		return []domain.SearchResult{}, nil
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		uc.log.Warn("query embedding failed, degrading to empty results",
			slog.String("error", err.Error()))
		return []domain.SearchResult{}, nil
	}

	filter := domain.ChunkFilter{DocumentID: req.DocumentID}
	scored, err := uc.index.Query(ctx, vector, maxResults, req.SimilarityThreshold, filter)
	if err != nil {
		uc.log.Warn("index query failed, degrading to empty results",
			slog.String("error", err.Error()))
		return []domain.SearchResult{}, nil
	}

	results := make([]domain.SearchResult, len(scored))
	for i, sc := range scored {
		results[i] = domain.SearchResult{
			DocumentID:    sc.Chunk.DocumentID,
			DocumentTitle: sc.Chunk.Metadata.DocumentTitle,
			ChunkText:     sc.Chunk.Text,
			Score:         sc.Score,
			ChapterLabel:  sc.Chunk.Metadata.ChapterLabel,
			PageNumber:    sc.Chunk.Metadata.PageNumber,
		}
	}
	return results, nil
}

// IndexStats and DependenciesAvailable implement the diagnostics surface.

func (uc *SearchUseCase) IndexStats(ctx context.Context) (domain.IndexStats, error) {
	return uc.index.Stats(ctx)
}

func (uc *SearchUseCase) DependenciesAvailable() domain.Dependencies {
	return uc.deps
}
