package chunking

import (
	"unicode"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
	// Lookback bounds the backward scan for a whitespace/sentence boundary
	// when snapping a window edge. Boundary search never blocks: if no
	// boundary exists within the lookback the cut lands on the exact offset.
	Lookback int
	// CharsPerPage drives the approximate page number annotation. It is a
	// rough estimate with no accuracy guarantee; 0 disables page numbers.
	CharsPerPage int
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinChunkSize: 100,
		Lookback:     50,
		CharsPerPage: 1800,
	}
}

type Splitter struct {
	cfg Config
}

func NewSplitter(cfg Config) *Splitter {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 4
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = def.MinChunkSize
	}
	if cfg.MinChunkSize > cfg.ChunkSize {
		cfg.MinChunkSize = cfg.ChunkSize
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.CharsPerPage < 0 {
		cfg.CharsPerPage = 0
	}
	return &Splitter{cfg: cfg}
}

// Split walks the text in windows of ChunkSize runes, advancing by
// ChunkSize-ChunkOverlap, snapping each window edge back to the nearest
// whitespace or sentence boundary within Lookback. Every non-final piece is
// at least MinChunkSize runes; the trailing remainder may be shorter. Empty
// text yields no pieces.
func (s *Splitter) Split(text string, chapters []domain.Chapter) []domain.ChunkPiece {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.cfg.ChunkSize - s.cfg.ChunkOverlap
	out := make([]domain.ChunkPiece, 0, len(runes)/step+1)

	start := 0
	for start < len(runes) {
		end := start + s.cfg.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.snapBoundary(runes, start, end)
		}

		out = append(out, domain.ChunkPiece{
			Text:         string(runes[start:end]),
			StartOffset:  start,
			ChapterLabel: chapterLabelAt(chapters, start),
			PageNumber:   s.pageEstimate(start),
		})

		if end == len(runes) {
			break
		}
		next := end - s.cfg.ChunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// snapBoundary moves the window edge back to just after the nearest
// whitespace or sentence-ending rune, provided the resulting piece stays at
// least MinChunkSize runes long. Otherwise the exact offset stands.
func (s *Splitter) snapBoundary(runes []rune, start, end int) int {
	low := end - s.cfg.Lookback
	if min := start + s.cfg.MinChunkSize; low < min {
		low = min
	}
	for j := end; j > low; j-- {
		if isBoundaryRune(runes[j-1]) {
			return j
		}
	}
	return end
}

func isBoundaryRune(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return unicode.IsSpace(r)
}

func chapterLabelAt(chapters []domain.Chapter, offset int) string {
	for _, ch := range chapters {
		if ch.Contains(offset) {
			return ch.Label
		}
	}
	return ""
}

func (s *Splitter) pageEstimate(offset int) int {
	if s.cfg.CharsPerPage <= 0 {
		return 0
	}
	return offset/s.cfg.CharsPerPage + 1
}
