package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/core/ports"
	"github.com/arodionov/study-assistant/internal/observability/metrics"
)

// Defaults are the per-request fallbacks applied when a client omits a
// tunable: result count, similarity thresholds, and the web policy flags.
type Defaults struct {
	MaxResults    int
	ThresholdBase float64
	ThresholdHigh float64
	WebFallback   bool
	WebSupplement bool
}

type Router struct {
	service  string
	ingestor ports.DocumentIngestor
	reader   ports.DocumentReader
	searcher ports.DocumentSearcher
	evidence ports.EvidenceRetriever
	diag     ports.Diagnostics
	metrics  *metrics.HTTPServerMetrics
	defaults Defaults
}

func NewRouter(
	service string,
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	searcher ports.DocumentSearcher,
	evidence ports.EvidenceRetriever,
	diag ports.Diagnostics,
	m *metrics.HTTPServerMetrics,
	defaults Defaults,
) *Router {
	return &Router{
		service:  service,
		ingestor: ingestor,
		reader:   reader,
		searcher: searcher,
		evidence: evidence,
		diag:     diag,
		metrics:  m,
		defaults: defaults,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/evidence", rt.retrieveEvidence)
	mux.HandleFunc("/v1/stats", rt.stats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(slog.Default(), handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	meta := domain.UploadMetadata{
		Title:   r.FormValue("title"),
		Author:  r.FormValue("author"),
		Subject: r.FormValue("subject"),
	}
	if tags := strings.TrimSpace(r.FormValue("tags")); tags != "" {
		meta.Tags = strings.Split(tags, ",")
	}

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
		meta,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.reader.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	switch {
	case action == "reprocess" && r.Method == http.MethodPost:
		rt.reprocessDocument(w, r, id)
	case action != "":
		writeError(w, http.StatusNotFound, "unknown resource")
	case r.Method == http.MethodGet:
		rt.getDocument(w, r, id)
	case r.Method == http.MethodDelete:
		rt.deleteDocument(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.ingestor.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.ingestor.Reprocess(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "document_id": id})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query               string   `json:"query"`
		MaxResults          int      `json:"max_results"`
		SimilarityThreshold *float64 `json:"similarity_threshold"`
		DocumentID          string   `json:"document_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	threshold := rt.defaults.ThresholdBase
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = rt.defaults.MaxResults
	}

	start := time.Now()
	results, err := rt.searcher.Search(r.Context(), ports.SearchRequest{
		Query:               req.Query,
		MaxResults:          maxResults,
		SimilarityThreshold: threshold,
		DocumentID:          req.DocumentID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, "/v1/search", len(results), time.Since(start))
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (rt *Router) retrieveEvidence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query             string   `json:"query"`
		MaxResults        int      `json:"max_results"`
		ThresholdHigh     *float64 `json:"threshold_high"`
		ThresholdBase     *float64 `json:"threshold_base"`
		DocumentID        string   `json:"document_id"`
		UseWebFallback    *bool    `json:"use_web_fallback"`
		SupplementWithWeb *bool    `json:"supplement_with_web"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	evReq := ports.EvidenceRequest{
		Query:             req.Query,
		MaxResults:        req.MaxResults,
		ThresholdHigh:     rt.defaults.ThresholdHigh,
		ThresholdBase:     rt.defaults.ThresholdBase,
		DocumentID:        req.DocumentID,
		UseWebFallback:    rt.defaults.WebFallback,
		SupplementWithWeb: rt.defaults.WebSupplement,
	}
	if evReq.MaxResults <= 0 {
		evReq.MaxResults = rt.defaults.MaxResults
	}
	if req.ThresholdHigh != nil {
		evReq.ThresholdHigh = *req.ThresholdHigh
	}
	if req.ThresholdBase != nil {
		evReq.ThresholdBase = *req.ThresholdBase
	}
	if req.UseWebFallback != nil {
		evReq.UseWebFallback = *req.UseWebFallback
	}
	if req.SupplementWithWeb != nil {
		evReq.SupplementWithWeb = *req.SupplementWithWeb
	}

	bundle, err := rt.evidence.Retrieve(r.Context(), evReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordEvidence(rt.service, len(bundle.DocumentEvidence), len(bundle.WebEvidence))
	}

	writeJSON(w, http.StatusOK, bundle)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	deps := rt.diag.DependenciesAvailable()
	stats, err := rt.diag.IndexStats(r.Context())
	if err != nil {
		// Index stats are best-effort; report dependency state regardless.
		writeJSON(w, http.StatusOK, map[string]any{
			"index":        domain.IndexStats{},
			"dependencies": deps,
			"index_error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"index":        stats,
		"dependencies": deps,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}
