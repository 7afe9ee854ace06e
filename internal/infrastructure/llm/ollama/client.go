package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Embed maps each input string to a dense vector of the model's fixed
// dimensionality. Inputs are embedded in one batched call; empty strings are
// rejected before the model is invoked.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "embed", fmt.Errorf("input %d is empty", i))
		}
	}

	request := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.execute(ctx, "ollama.embed", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed result count mismatch: want %d, got %d", len(texts), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

// Ping probes model availability. Used once at bootstrap; the probe also
// pulls nothing and embeds nothing, it only checks the model is served.
func (c *Client) Ping(ctx context.Context) error {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &response, "ping"); err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	for _, m := range response.Models {
		if m.Name == c.embedModel || strings.SplitN(m.Name, ":", 2)[0] == c.embedModel {
			return nil
		}
	}
	return fmt.Errorf("ollama ping: embed model %q is not loaded", c.embedModel)
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Do(ctx, operation, classifyOllamaError, fn)
}
