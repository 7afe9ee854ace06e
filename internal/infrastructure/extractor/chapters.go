package extractor

import (
	"regexp"
	"strings"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

// Heading patterns matched line by line, most specific first.
var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^chapter\s+\d+[:.\s]`),
	regexp.MustCompile(`(?i)^chapter\s+\d+$`),
	regexp.MustCompile(`^\d+\.\s+\S`),
	regexp.MustCompile(`^[A-Z][A-Z\s]{10,}$`),
}

// DetectChapters scans the text for heading-like lines and returns chapter
// hints with rune offsets. A chapter spans from its heading line to the next
// heading (exclusive); the last chapter runs to the end of the text.
func DetectChapters(text string) []domain.Chapter {
	if text == "" {
		return nil
	}

	var chapters []domain.Chapter
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := len([]rune(line))
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && isChapterHeading(trimmed) {
			if n := len(chapters); n > 0 {
				chapters[n-1].EndOffset = offset
			}
			chapters = append(chapters, domain.Chapter{
				Label:       trimmed,
				StartOffset: offset,
			})
		}
		offset += lineLen
	}

	if n := len(chapters); n > 0 {
		chapters[n-1].EndOffset = offset
	}
	return chapters
}

func isChapterHeading(line string) bool {
	for _, p := range chapterPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
