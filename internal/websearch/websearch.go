// Package websearch implements C8: a one-shot query against a web search
// provider, grounded on the pack's uv/datagov client (context-scoped
// request, bounded timeout, JSON decode). A failed Search yields an empty
// result list together with a non-nil error; the generator turns that error
// into tool-result text, so the model always receives a well-formed result.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/northfieldai/ragcore/internal/domain"
)

const deadline = 8 * time.Second

// Client is a small net/http-based web search provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a Client. baseURL is the provider's search endpoint.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: deadline,
		},
	}
}

var _ domain.WebSearchProvider = (*Client)(nil)

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search performs a single attempt at the configured provider with an
// 8-second deadline. On any failure it returns an empty list and a non-nil
// error; callers that need a never-erroring tool result should inspect the
// error only for logging, not for control flow, per spec.md §4.8.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.WebSearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if maxResults <= 0 {
		maxResults = 5
	}

	endpoint := fmt.Sprintf("%s?q=%s&max_results=%d", c.baseURL, url.QueryEscape(query), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build web search request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("web search error: status=%d body=%s", resp.StatusCode, string(payload))
	}

	var raw searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode web search response: %w", err)
	}

	out := make([]domain.WebSearchResult, 0, len(raw.Results))
	for _, r := range raw.Results {
		out = append(out, domain.WebSearchResult{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
