package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arodionov/study-assistant/internal/core/domain"
	"github.com/arodionov/study-assistant/internal/infrastructure/resilience"
)

// Client calls the Perplexity chat-completions API as a web-search
// collaborator: one question in, an answer with citations and consulted
// sources out. Requests are rate limited client-side to stay inside the
// API plan's request budget.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	Model              string
	RequestsPerMinute  int
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey string, options Options) *Client {
	model := options.Model
	if model == "" {
		model = "sonar"
	}
	rpm := options.RequestsPerMinute
	if rpm <= 0 {
		rpm = 20
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 45 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Search(ctx context.Context, query string) (domain.WebAnswer, error) {
	if strings.TrimSpace(query) == "" {
		return domain.WebAnswer{}, domain.WrapError(domain.ErrInvalidInput, "web search", errors.New("empty query"))
	}
	if c.apiKey == "" {
		return domain.WebAnswer{}, domain.WrapError(domain.ErrUnavailable, "web search", errors.New("no api key configured"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WebAnswer{}, fmt.Errorf("web search rate limit: %w", err)
	}

	var answer domain.WebAnswer
	call := func(callCtx context.Context) error {
		resp, err := c.complete(callCtx, query)
		if err != nil {
			return err
		}
		answer = resp
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "websearch.query", classifySearchError, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WebAnswer{}, err
	}
	return answer, nil
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"search_results"`
}

func (c *Client) complete(ctx context.Context, query string) (domain.WebAnswer, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": query},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.WebAnswer{}, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.WebAnswer{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WebAnswer{}, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.WebAnswer{}, &httpStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return domain.WebAnswer{}, fmt.Errorf("decode search response: %w", err)
	}
	return mapCompletion(completion), nil
}

func mapCompletion(completion completionResponse) domain.WebAnswer {
	answer := domain.WebAnswer{}
	if len(completion.Choices) > 0 {
		answer.Text = strings.TrimSpace(completion.Choices[0].Message.Content)
	}

	for _, r := range completion.SearchResults {
		if r.URL == "" {
			continue
		}
		answer.Citations = append(answer.Citations, domain.Citation{URL: r.URL, Title: r.Title})
	}
	// Older API versions report plain citation URLs only.
	if len(answer.Citations) == 0 {
		for _, url := range completion.Citations {
			if url == "" {
				continue
			}
			answer.Citations = append(answer.Citations, domain.Citation{URL: url})
		}
	}

	for _, url := range completion.Citations {
		if url == "" {
			continue
		}
		answer.Sources = append(answer.Sources, domain.WebSource{URL: url, Type: "web"})
	}
	return answer
}
