package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
)

// IngestDocumentUseCase owns the document lifecycle outside of processing:
// upload, re-ingestion, deletion. Processing itself happens asynchronously
// in the worker, triggered through the message queue.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	index   ports.VectorIndex
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	index ports.VectorIndex,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		index:   index,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	size int64,
	body io.Reader,
	meta domain.UploadMetadata,
) (*domain.Document, error) {
	fileType, ok := domain.FileTypeForMIME(mimeType)
	if !ok {
		return nil, domain.WrapError(
			domain.ErrUnsupportedFile,
			"upload document",
			fmt.Errorf("content type %q", mimeType),
		)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = titleFromFilename(filename, id)
	}

	doc := &domain.Document{
		ID:          id,
		Title:       title,
		Author:      meta.Author,
		Subject:     meta.Subject,
		FileType:    fileType,
		StoragePath: storageKey,
		FileSize:    size,
		Tags:        normalizeTags(meta.Tags),
		Status:      domain.StatusPending,
		UploadedAt:  now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		// Best effort: a file without a metadata row is unreachable garbage.
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// Reprocess queues an already-stored document for another pass through the
// pipeline. Its chunks are replaced wholesale when the worker upserts.
func (uc *IngestDocumentUseCase) Reprocess(ctx context.Context, documentID string) error {
	if _, err := uc.repo.GetByID(ctx, documentID); err != nil {
		return err
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusPending, ""); err != nil {
		return fmt.Errorf("reset document status: %w", err)
	}
	if err := uc.queue.PublishDocumentIngested(ctx, documentID); err != nil {
		return fmt.Errorf("publish ingestion event: %w", err)
	}
	return nil
}

// Delete cascades: index chunks first, then the stored file, then the
// metadata row. A file that is already gone does not block the cascade.
func (uc *IngestDocumentUseCase) Delete(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := uc.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete index chunks: %w", err)
	}
	if err := uc.storage.Delete(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("delete stored file: %w", err)
	}
	if err := uc.repo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	return nil
}

func titleFromFilename(filename, fallbackID string) string {
	base := filepath.Base(filename)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(title)
	if title == "" || title == "." {
		return "Document_" + fallbackID[:8]
	}
	return title
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
