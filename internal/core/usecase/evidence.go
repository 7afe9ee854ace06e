package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
)

// EvidenceUseCase combines document retrieval with web search under a
// hybrid policy: documents are consulted first at a permissive threshold,
// the web fills in when document evidence is weak, and optionally
// supplements when it is strong.
type EvidenceUseCase struct {
	searcher ports.DocumentSearcher
	web      ports.WebSearcher
	log      *slog.Logger
}

func NewEvidenceUseCase(
	searcher ports.DocumentSearcher,
	web ports.WebSearcher,
	log *slog.Logger,
) *EvidenceUseCase {
	return &EvidenceUseCase{
		searcher: searcher,
		web:      web,
		log:      log,
	}
}

func (uc *EvidenceUseCase) Retrieve(ctx context.Context, req ports.EvidenceRequest) (*domain.EvidenceBundle, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve evidence", fmt.Errorf("empty query"))
	}
	if req.ThresholdBase < 0 || req.ThresholdBase > 1 || req.ThresholdHigh < 0 || req.ThresholdHigh > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve evidence",
			fmt.Errorf("thresholds %v/%v outside [0, 1]", req.ThresholdBase, req.ThresholdHigh))
	}

	bundle := &domain.EvidenceBundle{
		DocumentEvidence: []domain.SearchResult{},
		WebEvidence:      []domain.WebFinding{},
	}

	if uc.searcher.HasDocuments(ctx) {
		docResults, err := uc.searcher.Search(ctx, ports.SearchRequest{
			Query:               req.Query,
			MaxResults:          req.MaxResults,
			SimilarityThreshold: req.ThresholdBase,
			DocumentID:          req.DocumentID,
		})
		if err != nil {
			return nil, err
		}
		bundle.DocumentEvidence = docResults
		bundle.UsedDocuments = len(docResults) > 0
	}

	sufficient := false
	for _, r := range bundle.DocumentEvidence {
		if r.Score >= req.ThresholdHigh {
			sufficient = true
			break
		}
	}

	// A document-scoped request never reaches for the web: the caller asked
	// about one specific document.
	wantWeb := req.DocumentID == "" &&
		((!sufficient && req.UseWebFallback) || (sufficient && req.SupplementWithWeb))

	if wantWeb {
		bundle.WebEvidence = uc.searchWeb(ctx, req.Query)
	}

	bundle.SourceSummary = buildSourceSummary(bundle)
	return bundle, nil
}

// searchWeb never propagates web errors: missing web evidence is an
// acceptable outcome, a failed retrieval is not.
func (uc *EvidenceUseCase) searchWeb(ctx context.Context, query string) []domain.WebFinding {
	answer, err := uc.web.Search(ctx, query)
	if err != nil {
		uc.log.Warn("web search failed, continuing without web evidence",
			slog.String("error", err.Error()))
		return []domain.WebFinding{}
	}

	findings := make([]domain.WebFinding, 0, len(answer.Citations))
	if len(answer.Citations) == 0 {
		if strings.TrimSpace(answer.Text) != "" {
			findings = append(findings, domain.WebFinding{Text: answer.Text})
		}
		return findings
	}

	// The answer text belongs to the first citation; the rest come along
	// as bare references.
	findings = append(findings, domain.WebFinding{
		Text:  answer.Text,
		URL:   answer.Citations[0].URL,
		Title: answer.Citations[0].Title,
	})
	for _, c := range answer.Citations[1:] {
		findings = append(findings, domain.WebFinding{URL: c.URL, Title: c.Title})
	}
	return findings
}

func buildSourceSummary(b *domain.EvidenceBundle) string {
	var parts []string
	if titles := distinctTitles(b.DocumentEvidence); len(titles) > 0 {
		parts = append(parts, "from your materials: "+strings.Join(titles, ", "))
	}
	if hosts := distinctHosts(b.WebEvidence); len(hosts) > 0 {
		parts = append(parts, "from the web: "+strings.Join(hosts, ", "))
	}
	if len(parts) == 0 {
		return "no relevant sources found"
	}
	return strings.Join(parts, "; ")
}

func distinctTitles(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	var titles []string
	for _, r := range results {
		title := r.DocumentTitle
		if title == "" {
			title = r.DocumentID
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}
	return titles
}

func distinctHosts(findings []domain.WebFinding) []string {
	seen := make(map[string]struct{}, len(findings))
	var hosts []string
	for _, f := range findings {
		host := f.URL
		if u, err := url.Parse(f.URL); err == nil && u.Host != "" {
			host = u.Host
		}
		if host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	if len(hosts) == 0 && len(findings) > 0 {
		hosts = append(hosts, "web search")
	}
	return hosts
}
