package domain

// ChunkMetadata is duplicated onto every chunk so search results can be
// filtered and attributed without joining back to the document row.
// Extra is an open extension map for fields the fixed schema does not cover.
type ChunkMetadata struct {
	DocumentTitle string            `json:"document_title"`
	Author        string            `json:"author,omitempty"`
	Subject       string            `json:"subject,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	ChapterLabel  string            `json:"chapter_label,omitempty"`
	PageNumber    int               `json:"page_number,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Chunk is the unit of indexing and retrieval. Chunks are immutable after
// ingestion; re-ingesting a document replaces all of its chunks.
// PageNumber in the metadata is an estimate derived from a characters-per-page
// constant, not an authoritative page reference.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	Embedding  []float32     `json:"-"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ChunkPiece is a chunker output candidate: text plus location annotation,
// not yet embedded or assigned an index id. StartOffset is the rune offset of
// the piece within the source text; PageNumber is an estimate (0 = unknown).
type ChunkPiece struct {
	Text         string
	StartOffset  int
	ChapterLabel string
	PageNumber   int
}

// ChunkFilter restricts an index query. Fields combine conjunctively;
// the zero value matches everything.
type ChunkFilter struct {
	DocumentID string
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

type IndexStats struct {
	TotalChunks     int `json:"total_chunks"`
	UniqueDocuments int `json:"unique_documents"`
}
