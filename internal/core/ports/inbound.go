package ports

import (
	"context"
	"io"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document lifecycle
// orchestration: upload, re-ingestion, deletion.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, size int64, body io.Reader, meta domain.UploadMetadata) (*domain.Document, error)
	Reprocess(ctx context.Context, documentID string) error
	Delete(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing (extract, chunk, embed, index).
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// SearchRequest carries per-query search parameters. SimilarityThreshold
// must lie in [0,1]; DocumentID optionally scopes the search to one document.
type SearchRequest struct {
	Query               string
	MaxResults          int
	SimilarityThreshold float64
	DocumentID          string
}

// DocumentSearcher is the single entry point for "what do my documents say
// about X". Search degrades to empty results when collaborators are down.
type DocumentSearcher interface {
	HasDocuments(ctx context.Context) bool
	Search(ctx context.Context, req SearchRequest) ([]domain.SearchResult, error)
}

// EvidenceRequest parameterizes hybrid retrieval. ThresholdHigh is the
// document-sufficiency bar, ThresholdBase the floor for plain search; both
// are tunables, independently configurable per query type.
type EvidenceRequest struct {
	Query             string
	MaxResults        int
	ThresholdHigh     float64
	ThresholdBase     float64
	DocumentID        string
	UseWebFallback    bool
	SupplementWithWeb bool
}

// EvidenceRetriever merges document and web evidence into one attributed
// bundle per query.
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, req EvidenceRequest) (*domain.EvidenceBundle, error)
}

// Diagnostics exposes read-only health information about the retrieval core.
type Diagnostics interface {
	IndexStats(ctx context.Context) (domain.IndexStats, error)
	DependenciesAvailable() domain.Dependencies
}
