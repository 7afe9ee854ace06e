package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

func extractPDF(raw []byte) (extraction domain.Extraction, err error) {
	// The pdf library panics on some malformed files; corrupt input must
	// surface as an explicit error, not a crash.
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrInvalidInput, "parse pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}

	pageCount := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			// Unreadable pages are skipped rather than failing the whole
			// document; the page count still reflects them.
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	return domain.Extraction{
		Text:      text,
		Chapters:  DetectChapters(text),
		PageCount: pageCount,
		Metadata:  map[string]string{},
	}, nil
}
