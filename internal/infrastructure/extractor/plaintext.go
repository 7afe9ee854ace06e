package extractor

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

func extractPlaintext(raw []byte) (domain.Extraction, error) {
	if !utf8.Valid(raw) {
		return domain.Extraction{}, domain.WrapError(
			domain.ErrInvalidInput,
			"extract plaintext",
			errors.New("file is not valid utf-8"),
		)
	}

	text := strings.TrimSpace(string(raw))
	return domain.Extraction{
		Text:     text,
		Chapters: DetectChapters(text),
		Metadata: map[string]string{"encoding": "utf-8"},
	}, nil
}
