package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
)

type evidenceSearcherFake struct {
	hasDocs   bool
	results   []domain.SearchResult
	searchErr error
	gotReq    ports.SearchRequest
	calls     int
}

func (f *evidenceSearcherFake) HasDocuments(context.Context) bool { return f.hasDocs }

func (f *evidenceSearcherFake) Search(_ context.Context, req ports.SearchRequest) ([]domain.SearchResult, error) {
	f.calls++
	f.gotReq = req
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

type evidenceWebFake struct {
	answer domain.WebAnswer
	err    error
	calls  int
}

func (f *evidenceWebFake) Search(_ context.Context, _ string) (domain.WebAnswer, error) {
	f.calls++
	if f.err != nil {
		return domain.WebAnswer{}, f.err
	}
	return f.answer, nil
}

func docHit(title string, score float64) domain.SearchResult {
	return domain.SearchResult{
		DocumentID:    "doc-" + title,
		DocumentTitle: title,
		ChunkText:     "relevant text",
		Score:         score,
	}
}

func evidenceReq() ports.EvidenceRequest {
	return ports.EvidenceRequest{
		Query:          "explain inertia",
		MaxResults:     5,
		ThresholdHigh:  0.75,
		ThresholdBase:  0.5,
		UseWebFallback: true,
	}
}

func TestRetrieveDocumentsSufficientSkipsWeb(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: true, results: []domain.SearchResult{docHit("Mechanics", 0.82)}}
	web := &evidenceWebFake{}
	uc := NewEvidenceUseCase(searcher, web, testLogger())

	bundle, err := uc.Retrieve(context.Background(), evidenceReq())
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if web.calls != 0 {
		t.Fatal("web must not be consulted when document evidence is sufficient")
	}
	if !bundle.UsedDocuments {
		t.Fatal("expected used_documents true")
	}
	if searcher.gotReq.SimilarityThreshold != 0.5 {
		t.Fatalf("document search must use the base threshold, got %v", searcher.gotReq.SimilarityThreshold)
	}
	if bundle.SourceSummary != "from your materials: Mechanics" {
		t.Fatalf("unexpected source summary %q", bundle.SourceSummary)
	}
}

func TestRetrieveWeakDocumentsTriggerWebFallback(t *testing.T) {
	// Hits above base but below high: documents are used, web still fires.
	searcher := &evidenceSearcherFake{hasDocs: true, results: []domain.SearchResult{docHit("Mechanics", 0.6)}}
	web := &evidenceWebFake{answer: domain.WebAnswer{
		Text:      "Inertia is a property of matter.",
		Citations: []domain.Citation{{URL: "https://en.wikipedia.org/wiki/Inertia", Title: "Inertia"}},
	}}
	uc := NewEvidenceUseCase(searcher, web, testLogger())

	bundle, err := uc.Retrieve(context.Background(), evidenceReq())
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if web.calls != 1 {
		t.Fatalf("expected one web call, got %d", web.calls)
	}
	if !bundle.UsedDocuments {
		t.Fatal("sub-threshold hits still count as used documents")
	}
	if len(bundle.WebEvidence) != 1 {
		t.Fatalf("expected 1 web finding, got %d", len(bundle.WebEvidence))
	}
	if bundle.WebEvidence[0].URL != "https://en.wikipedia.org/wiki/Inertia" {
		t.Fatalf("unexpected finding %+v", bundle.WebEvidence[0])
	}
	if bundle.SourceSummary != "from your materials: Mechanics; from the web: en.wikipedia.org" {
		t.Fatalf("unexpected source summary %q", bundle.SourceSummary)
	}
}

func TestRetrieveNoDocumentsFallsBackToWeb(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: false}
	web := &evidenceWebFake{answer: domain.WebAnswer{Text: "web answer"}}
	uc := NewEvidenceUseCase(searcher, web, testLogger())

	bundle, err := uc.Retrieve(context.Background(), evidenceReq())
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if searcher.calls != 0 {
		t.Fatal("search must be skipped when no documents exist")
	}
	if bundle.UsedDocuments {
		t.Fatal("expected used_documents false")
	}
	if len(bundle.WebEvidence) != 1 || bundle.WebEvidence[0].Text != "web answer" {
		t.Fatalf("expected citation-less web finding, got %+v", bundle.WebEvidence)
	}
}

func TestRetrieveWebFallbackDisabled(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: true, results: []domain.SearchResult{}}
	web := &evidenceWebFake{}
	uc := NewEvidenceUseCase(searcher, web, testLogger())

	req := evidenceReq()
	req.UseWebFallback = false
	bundle, err := uc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if web.calls != 0 {
		t.Fatal("web must stay off when fallback is disabled")
	}
	if bundle.SourceSummary != "no relevant sources found" {
		t.Fatalf("unexpected source summary %q", bundle.SourceSummary)
	}
}

func TestRetrieveSupplementWithWeb(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: true, results: []domain.SearchResult{docHit("Mechanics", 0.9)}}
	web := &evidenceWebFake{answer: domain.WebAnswer{
		Text: "extra context",
		Citations: []domain.Citation{
			{URL: "https://physics.stackexchange.com/q/1", Title: "Q1"},
			{URL: "https://plato.stanford.edu/entries/newton", Title: "Newton"},
		},
	}}
	uc := NewEvidenceUseCase(searcher, web, testLogger())

	req := evidenceReq()
	req.SupplementWithWeb = true
	bundle, err := uc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if web.calls != 1 {
		t.Fatal("supplement flag must trigger web search even with strong documents")
	}
	if len(bundle.WebEvidence) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(bundle.WebEvidence))
	}
	if bundle.WebEvidence[0].Text != "extra context" || bundle.WebEvidence[1].Text != "" {
		t.Fatalf("answer text must attach to the first finding only: %+v", bundle.WebEvidence)
	}
}

func TestRetrieveDocumentScopeBypassesWeb(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: true, results: []domain.SearchResult{}}
	web := &evidenceWebFake{}
	uc := NewEvidenceUseCase(searcher, web, testLogger())

	req := evidenceReq()
	req.DocumentID = "doc-1"
	if _, err := uc.Retrieve(context.Background(), req); err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if web.calls != 0 {
		t.Fatal("a document-scoped request must never reach the web")
	}
	if searcher.gotReq.DocumentID != "doc-1" {
		t.Fatalf("document filter not passed to search: %+v", searcher.gotReq)
	}
}

func TestRetrieveWebFailureYieldsEmptyWebEvidence(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: false}
	web := &evidenceWebFake{err: errors.New("perplexity 500")}
	uc := NewEvidenceUseCase(searcher, web, testLogger())

	bundle, err := uc.Retrieve(context.Background(), evidenceReq())
	if err != nil {
		t.Fatalf("web failure must not fail retrieval: %v", err)
	}
	if len(bundle.WebEvidence) != 0 {
		t.Fatalf("expected empty web evidence, got %+v", bundle.WebEvidence)
	}
	if bundle.SourceSummary != "no relevant sources found" {
		t.Fatalf("unexpected source summary %q", bundle.SourceSummary)
	}
}

func TestRetrieveValidatesInput(t *testing.T) {
	uc := NewEvidenceUseCase(&evidenceSearcherFake{}, &evidenceWebFake{}, testLogger())

	if _, err := uc.Retrieve(context.Background(), ports.EvidenceRequest{Query: " "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty query, got %v", err)
	}
	req := evidenceReq()
	req.ThresholdHigh = 1.2
	if _, err := uc.Retrieve(context.Background(), req); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad threshold, got %v", err)
	}
}

func TestRetrievePropagatesSearchValidationError(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: true, searchErr: domain.WrapError(domain.ErrInvalidInput, "search", errors.New("bad"))}
	uc := NewEvidenceUseCase(searcher, &evidenceWebFake{}, testLogger())

	if _, err := uc.Retrieve(context.Background(), evidenceReq()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected search error to propagate, got %v", err)
	}
}

func TestSourceSummaryDeduplicatesTitles(t *testing.T) {
	searcher := &evidenceSearcherFake{hasDocs: true, results: []domain.SearchResult{
		docHit("Mechanics", 0.9),
		docHit("Mechanics", 0.8),
		docHit("Optics", 0.78),
	}}
	uc := NewEvidenceUseCase(searcher, &evidenceWebFake{}, testLogger())

	bundle, err := uc.Retrieve(context.Background(), evidenceReq())
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if strings.Count(bundle.SourceSummary, "Mechanics") != 1 {
		t.Fatalf("titles must be deduplicated, got %q", bundle.SourceSummary)
	}
	if bundle.SourceSummary != "from your materials: Mechanics, Optics" {
		t.Fatalf("unexpected source summary %q", bundle.SourceSummary)
	}
}
