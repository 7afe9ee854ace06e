package extractor

import (
	"context"
	"fmt"
	"io"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
)

// Service extracts raw text, chapter hints, and metadata from stored
// documents, dispatching on the document's file type.
type Service struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Service {
	return &Service{storage: storage}
}

func (s *Service) Extract(ctx context.Context, doc *domain.Document) (domain.Extraction, error) {
	reader, err := s.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read source document: %w", err)
	}

	switch doc.FileType {
	case domain.FileTypeTXT:
		return extractPlaintext(raw)
	case domain.FileTypePDF:
		return extractPDF(raw)
	case domain.FileTypeDOCX:
		return extractDOCX(raw)
	case domain.FileTypeEPUB:
		return extractEPUB(raw)
	default:
		return domain.Extraction{}, domain.WrapError(
			domain.ErrUnsupportedFile,
			"extract text",
			fmt.Errorf("no extractor for file type %q", doc.FileType),
		)
	}
}
