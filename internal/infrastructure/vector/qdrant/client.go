package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arodionov/study-assistant/internal/core/domain"
)

// Client talks to qdrant over its HTTP API. One collection holds every
// document's chunks; chunks carry their full metadata in the point payload
// so queries never join back to the document store.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int

	docLocks *keyedLocks
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		docLocks:   newKeyedLocks(),
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// pointIDFor hashes the chunk ID into a deterministic UUID. Qdrant accepts
// only unsigned integers or UUIDs as point IDs; hashing keeps re-ingestion
// of the same chunk landing on the same point.
func pointIDFor(chunk domain.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ID)).String()
}

// UpsertChunks replaces all chunks for documentID with the given set.
// Delete-then-insert under a per-document lock: re-ingestion never leaves
// ghost chunks, and readers never observe a mix of old and new chunks from
// concurrent upserts to the same document. Upserts for different documents
// proceed concurrently. An empty chunk slice clears the document.
func (c *Client) UpsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if strings.TrimSpace(documentID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert chunks", fmt.Errorf("empty document id"))
	}

	unlock := c.docLocks.lock(documentID)
	defer unlock()

	if err := c.deleteByDocument(ctx, documentID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	if len(chunks[0].Embedding) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "upsert chunks", fmt.Errorf("chunk 0 has no embedding"))
	}
	if err := c.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}

	points := make([]point, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, point{
			ID:      pointIDFor(chunk),
			Vector:  chunk.Embedding,
			Payload: chunkPayload(chunk),
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.putJSON(ctx, url, map[string]any{"points": points}, nil, "upsert"); err != nil {
		return err
	}
	return nil
}

// Query returns at most topK chunks with similarity >= floor, descending by
// score. Equal scores are ordered by (document id, chunk index) so repeated
// identical queries rank identically.
func (c *Client) Query(
	ctx context.Context,
	vector []float32,
	topK int,
	floor float64,
	filter domain.ChunkFilter,
) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector":          vector,
		"limit":           topK,
		"score_threshold": floor,
		"with_payload":    true,
	}
	if qf := buildFilter(filter); qf != nil {
		reqBody["filter"] = qf
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err := c.postJSON(ctx, url, reqBody, &searchResp, "search")
	if err != nil {
		// A collection that was never created is an empty index, not a
		// failure.
		if isMissingCollection(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredChunk{
			Chunk: chunkFromPayload(r.Payload),
			Score: r.Score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Chunk.DocumentID != out[j].Chunk.DocumentID {
			return out[i].Chunk.DocumentID < out[j].Chunk.DocumentID
		}
		return out[i].Chunk.Index < out[j].Chunk.Index
	})
	return out, nil
}

// DeleteDocument removes every chunk belonging to the document. Deleting a
// document that has no chunks is a no-op.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	unlock := c.docLocks.lock(documentID)
	defer unlock()
	return c.deleteByDocument(ctx, documentID)
}

func (c *Client) deleteByDocument(ctx context.Context, documentID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	err := c.postJSON(ctx, url, reqBody, nil, "delete")
	if err != nil && !isMissingCollection(err) {
		return err
	}
	return nil
}

// Stats reports chunk and document counts. The distinct-document count
// scrolls the collection payloads; acceptable at the library sizes this
// service targets.
func (c *Client) Stats(ctx context.Context) (domain.IndexStats, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	countURL := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	err := c.postJSON(ctx, countURL, map[string]any{"exact": true}, &countResp, "count")
	if err != nil {
		if isMissingCollection(err) {
			return domain.IndexStats{}, nil
		}
		return domain.IndexStats{}, err
	}

	uniqueDocs, err := c.countDistinctDocuments(ctx)
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		TotalChunks:     countResp.Result.Count,
		UniqueDocuments: uniqueDocs,
	}, nil
}

func (c *Client) countDistinctDocuments(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	var offset any

	scrollURL := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
	for {
		reqBody := map[string]any{
			"limit":        1000,
			"with_payload": []string{"document_id"},
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.postJSON(ctx, scrollURL, reqBody, &scrollResp, "scroll"); err != nil {
			if isMissingCollection(err) {
				return 0, nil
			}
			return 0, err
		}

		for _, p := range scrollResp.Result.Points {
			if id := payloadString(p.Payload, "document_id"); id != "" {
				seen[id] = struct{}{}
			}
		}
		if scrollResp.Result.NextPageOffset == nil {
			break
		}
		offset = scrollResp.Result.NextPageOffset
	}
	return len(seen), nil
}

// Ping probes store reachability; used once at bootstrap.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.getJSON(ctx, c.baseURL+"/collections", nil, "ping"); err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.putJSON(ctx, url, reqBody, nil, "ensure collection")
	if err != nil {
		if !isConflict(err) {
			return err
		}
		// The collection already exists; a dimension mismatch here means the
		// embedding model changed under an existing index. Surface it as a
		// configuration error instead of letting the upsert fail opaquely.
		existing, gerr := c.collectionVectorSize(ctx)
		if gerr != nil {
			return gerr
		}
		if existing > 0 && existing != vectorSize {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"ensure collection",
				fmt.Errorf("collection %q stores %d-dimensional vectors but the embedder produces %d; re-index into a fresh collection",
					c.collection, existing, vectorSize),
			)
		}
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) collectionVectorSize(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	if err := c.getJSON(ctx, url, &resp, "get collection"); err != nil {
		return 0, err
	}
	return resp.Result.Config.Params.Vectors.Size, nil
}

func buildFilter(filter domain.ChunkFilter) map[string]any {
	var must []map[string]any
	if filter.DocumentID != "" {
		must = append(must, map[string]any{
			"key":   "document_id",
			"match": map[string]any{"value": filter.DocumentID},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}
