package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
)

// ProcessDocumentUseCase runs the extraction pipeline for a single document:
// extract text, split into chunks, embed, and replace the document's slice of
// the vector index. Every failure path lands the document in StatusFailed so
// nothing is ever left stuck in StatusProcessing.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
	log       *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	log *slog.Logger,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		log:       log,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := uc.process(ctx, doc); err != nil {
		uc.markFailed(ctx, documentID, err)
		return err
	}
	return nil
}

func (uc *ProcessDocumentUseCase) process(ctx context.Context, doc *domain.Document) error {
	extraction, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	pieces := uc.chunker.Split(extraction.Text, extraction.Chapters)
	if len(pieces) == 0 {
		// A document with no extractable text is complete with zero chunks,
		// and any chunks from a previous ingestion are dropped.
		if err := uc.index.UpsertChunks(ctx, doc.ID, nil); err != nil {
			return fmt.Errorf("clear index chunks: %w", err)
		}
		if err := uc.repo.SaveProcessingResult(ctx, doc.ID, 0, extraction.Chapters); err != nil {
			return fmt.Errorf("save processing result: %w", err)
		}
		uc.log.Info("document processed with no text",
			slog.String("document_id", doc.ID))
		return nil
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			ID:         fmt.Sprintf("%s_%d", doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Text:       piece.Text,
			Embedding:  vectors[i],
			Metadata: domain.ChunkMetadata{
				DocumentTitle: doc.Title,
				Author:        doc.Author,
				Subject:       doc.Subject,
				Tags:          doc.Tags,
				ChapterLabel:  piece.ChapterLabel,
				PageNumber:    piece.PageNumber,
			},
		}
	}

	if err := uc.index.UpsertChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("upsert index chunks: %w", err)
	}
	if err := uc.repo.SaveProcessingResult(ctx, doc.ID, len(chunks), extraction.Chapters); err != nil {
		return fmt.Errorf("save processing result: %w", err)
	}

	uc.log.Info("document processed",
		slog.String("document_id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.Int("chapters", len(extraction.Chapters)))
	return nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, cause error) {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, cause.Error()); err != nil {
		uc.log.Error("failed to record processing failure",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
	}
}
