package domain

// SearchResult is the caller-facing shape of one retrieved chunk. It is
// produced per query and never persisted.
type SearchResult struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkText     string  `json:"chunk_text"`
	Score         float64 `json:"similarity_score"`
	ChapterLabel  string  `json:"chapter_label,omitempty"`
	PageNumber    int     `json:"page_number,omitempty"`
}

type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type WebSource struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// WebAnswer is the web-search collaborator's response.
type WebAnswer struct {
	Text      string      `json:"text"`
	Citations []Citation  `json:"citations"`
	Sources   []WebSource `json:"sources"`
}

type WebFinding struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// EvidenceBundle is the merged, attributed evidence set for one query.
// Document evidence always precedes web evidence.
type EvidenceBundle struct {
	DocumentEvidence []SearchResult `json:"document_evidence"`
	WebEvidence      []WebFinding   `json:"web_evidence"`
	UsedDocuments    bool           `json:"used_documents"`
	SourceSummary    string         `json:"source_summary"`
}

// Dependencies reports which retrieval collaborators were reachable at
// startup. Probed once and cached; search degrades to empty results when
// either is missing.
type Dependencies struct {
	EmbeddingModel bool `json:"embedding_model"`
	VectorStore    bool `json:"vector_store"`
}

func (d Dependencies) SearchReady() bool {
	return d.EmbeddingModel && d.VectorStore
}
