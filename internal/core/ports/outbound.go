package ports

import (
	"context"
	"io"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error
	SaveProcessingResult(ctx context.Context, id string, chunkCount int, chapters []domain.Chapter) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts raw text plus chapter hints from a stored document.
// Corrupt input fails explicitly; extractors never silently truncate.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.Extraction, error)
}

// Chunker splits extracted text into overlapping, chapter-annotated chunks.
type Chunker interface {
	Split(text string, chapters []domain.Chapter) []domain.ChunkPiece
}

// Embedder builds vectors for chunks and query text. Ping is the startup
// capability probe backing dependencies_available.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Ping(ctx context.Context) error
}

// VectorIndex stores chunks keyed by document and answers nearest-neighbor
// queries over cosine similarity.
type VectorIndex interface {
	// UpsertChunks replaces all chunks for the document. Passing an empty
	// slice clears the document's chunks. Concurrent upserts to the same
	// document are serialized; readers never observe a torn state.
	UpsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	// Query returns at most topK chunks scoring >= floor, descending by
	// score with ties broken by insertion order.
	Query(ctx context.Context, vector []float32, topK int, floor float64, filter domain.ChunkFilter) ([]domain.ScoredChunk, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Stats(ctx context.Context) (domain.IndexStats, error)
	Ping(ctx context.Context) error
}

// WebSearcher is the web-search collaborator used for fallback evidence.
type WebSearcher interface {
	Search(ctx context.Context, query string) (domain.WebAnswer, error)
}
