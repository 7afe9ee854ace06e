package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
)

type searchEmbedderFake struct {
	vector []float32
	err    error
}

func (f *searchEmbedderFake) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *searchEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *searchEmbedderFake) Ping(context.Context) error { return nil }

type searchIndexFake struct {
	vectorIndexStub
	scored     []domain.ScoredChunk
	queryErr   error
	stats      domain.IndexStats
	statsErr   error
	gotTopK    int
	gotFloor   float64
	gotFilter  domain.ChunkFilter
	queryCalls int
}

func (f *searchIndexFake) Query(_ context.Context, _ []float32, topK int, floor float64, filter domain.ChunkFilter) ([]domain.ScoredChunk, error) {
	f.queryCalls++
	f.gotTopK = topK
	f.gotFloor = floor
	f.gotFilter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.scored, nil
}

func (f *searchIndexFake) Stats(context.Context) (domain.IndexStats, error) {
	if f.statsErr != nil {
		return domain.IndexStats{}, f.statsErr
	}
	return f.stats, nil
}

func allDepsUp() domain.Dependencies {
	return domain.Dependencies{EmbeddingModel: true, VectorStore: true}
}

// corpusIndexFake answers queries from a fixed score-sorted corpus, applying
// the floor and topK the way the real index does.
type corpusIndexFake struct {
	vectorIndexStub
	corpus []domain.ScoredChunk
}

func (f *corpusIndexFake) Query(_ context.Context, _ []float32, topK int, floor float64, _ domain.ChunkFilter) ([]domain.ScoredChunk, error) {
	out := make([]domain.ScoredChunk, 0, topK)
	for _, sc := range f.corpus {
		if sc.Score < floor {
			continue
		}
		out = append(out, sc)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func TestSearchMapsScoredChunks(t *testing.T) {
	index := &searchIndexFake{scored: []domain.ScoredChunk{
		{
			Chunk: domain.Chunk{
				DocumentID: "doc-1",
				Text:       "inertia is resistance to change in motion",
				Metadata: domain.ChunkMetadata{
					DocumentTitle: "Mechanics",
					ChapterLabel:  "Chapter 1",
					PageNumber:    3,
				},
			},
			Score: 0.91,
		},
	}}
	uc := NewSearchUseCase(&searchEmbedderFake{vector: []float32{1, 0}}, index, allDepsUp(), testLogger())

	results, err := uc.Search(context.Background(), ports.SearchRequest{
		Query:               "what is inertia",
		MaxResults:          3,
		SimilarityThreshold: 0.5,
		DocumentID:          "doc-1",
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.DocumentTitle != "Mechanics" || r.Score != 0.91 || r.PageNumber != 3 {
		t.Fatalf("unexpected result mapping: %+v", r)
	}
	if index.gotTopK != 3 || index.gotFloor != 0.5 {
		t.Fatalf("query parameters not passed through: topK=%d floor=%v", index.gotTopK, index.gotFloor)
	}
	if index.gotFilter.DocumentID != "doc-1" {
		t.Fatalf("document filter not passed through: %+v", index.gotFilter)
	}
}

func TestSearchRejectsEmptyQueryAndBadThreshold(t *testing.T) {
	uc := NewSearchUseCase(&searchEmbedderFake{vector: []float32{1}}, &searchIndexFake{}, allDepsUp(), testLogger())

	if _, err := uc.Search(context.Background(), ports.SearchRequest{Query: "  "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty query, got %v", err)
	}
	if _, err := uc.Search(context.Background(), ports.SearchRequest{Query: "q", SimilarityThreshold: 1.5}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for threshold > 1, got %v", err)
	}
	if _, err := uc.Search(context.Background(), ports.SearchRequest{Query: "q", SimilarityThreshold: -0.1}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative threshold, got %v", err)
	}
}

func TestSearchDegradesWhenDependenciesDown(t *testing.T) {
	index := &searchIndexFake{}
	deps := domain.Dependencies{EmbeddingModel: false, VectorStore: true}
	uc := NewSearchUseCase(&searchEmbedderFake{vector: []float32{1}}, index, deps, testLogger())

	results, err := uc.Search(context.Background(), ports.SearchRequest{Query: "anything", SimilarityThreshold: 0.5})
	if err != nil {
		t.Fatalf("degraded search must not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
	if index.queryCalls != 0 {
		t.Fatal("index must not be queried when dependencies are down")
	}
}

func TestSearchDegradesOnEmbeddingFailure(t *testing.T) {
	uc := NewSearchUseCase(&searchEmbedderFake{err: errors.New("ollama timeout")}, &searchIndexFake{}, allDepsUp(), testLogger())

	results, err := uc.Search(context.Background(), ports.SearchRequest{Query: "q", SimilarityThreshold: 0.5})
	if err != nil {
		t.Fatalf("embedding failure must degrade, not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestSearchDegradesOnIndexFailure(t *testing.T) {
	index := &searchIndexFake{queryErr: errors.New("qdrant unavailable")}
	uc := NewSearchUseCase(&searchEmbedderFake{vector: []float32{1}}, index, allDepsUp(), testLogger())

	results, err := uc.Search(context.Background(), ports.SearchRequest{Query: "q", SimilarityThreshold: 0.5})
	if err != nil {
		t.Fatalf("index failure must degrade, not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestHasDocuments(t *testing.T) {
	cases := []struct {
		name  string
		index *searchIndexFake
		deps  domain.Dependencies
		want  bool
	}{
		{"chunks present", &searchIndexFake{stats: domain.IndexStats{TotalChunks: 12}}, allDepsUp(), true},
		{"empty index", &searchIndexFake{}, allDepsUp(), false},
		{"stats failure", &searchIndexFake{statsErr: errors.New("down")}, allDepsUp(), false},
		{"vector store down", &searchIndexFake{stats: domain.IndexStats{TotalChunks: 12}}, domain.Dependencies{EmbeddingModel: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := NewSearchUseCase(&searchEmbedderFake{vector: []float32{1}}, tc.index, tc.deps, testLogger())
			if got := uc.HasDocuments(context.Background()); got != tc.want {
				t.Fatalf("HasDocuments = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSearchFiltersByThresholdAndGrowsMonotonically(t *testing.T) {
	corpus := []domain.ScoredChunk{
		{Chunk: domain.Chunk{DocumentID: "doc-1", Index: 0, Text: "c0"}, Score: 0.95},
		{Chunk: domain.Chunk{DocumentID: "doc-1", Index: 1, Text: "c1"}, Score: 0.90},
		{Chunk: domain.Chunk{DocumentID: "doc-2", Index: 0, Text: "c2"}, Score: 0.80},
		{Chunk: domain.Chunk{DocumentID: "doc-2", Index: 1, Text: "c3"}, Score: 0.65},
		{Chunk: domain.Chunk{DocumentID: "doc-3", Index: 0, Text: "c4"}, Score: 0.55},
		{Chunk: domain.Chunk{DocumentID: "doc-3", Index: 1, Text: "c5"}, Score: 0.40},
	}
	uc := NewSearchUseCase(&searchEmbedderFake{vector: []float32{1}}, &corpusIndexFake{corpus: corpus}, allDepsUp(), testLogger())

	search := func(maxResults int) []domain.SearchResult {
		t.Helper()
		results, err := uc.Search(context.Background(), ports.SearchRequest{
			Query:               "q",
			MaxResults:          maxResults,
			SimilarityThreshold: 0.5,
		})
		if err != nil {
			t.Fatalf("Search(max=%d) returned error: %v", maxResults, err)
		}
		return results
	}

	large := search(10)
	if len(large) != 5 {
		t.Fatalf("expected 5 results at or above 0.5, got %d", len(large))
	}
	for _, r := range large {
		if r.Score < 0.5 {
			t.Fatalf("result below similarity threshold: %+v", r)
		}
	}

	// Asking for fewer results must yield a prefix of the larger answer.
	small := search(2)
	if len(small) != 2 {
		t.Fatalf("expected 2 results, got %d", len(small))
	}
	for i, r := range small {
		if r.ChunkText != large[i].ChunkText || r.Score != large[i].Score {
			t.Fatalf("smaller result set is not a prefix: position %d got %+v, want %+v", i, r, large[i])
		}
	}
}

func TestSearchDefaultsMaxResults(t *testing.T) {
	index := &searchIndexFake{}
	uc := NewSearchUseCase(&searchEmbedderFake{vector: []float32{1}}, index, allDepsUp(), testLogger())

	if _, err := uc.Search(context.Background(), ports.SearchRequest{Query: "q", SimilarityThreshold: 0.5}); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if index.gotTopK != 5 {
		t.Fatalf("expected default topK 5, got %d", index.gotTopK)
	}
}
