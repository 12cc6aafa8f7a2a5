// Package websearch implements core.WebSearcher against an HTTP search
// API. The client is deliberately thin: resilience (breaker, fallback)
// lives with the caller.
package websearch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/fairplaylabs/adviser/core"
)

// Client queries a JSON search endpoint of the shape
// GET {base}/search?q=...&limit=N returning {"results": [{"title",
// "url", "snippet"}, ...]}.
type Client struct {
	http *resty.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.http.SetAuthToken(key) }
}

// NewClient constructs a Client for the given API base URL.
func NewClient(baseURL string, optFns ...ClientOption) *Client {
	c := &Client{http: resty.New().SetBaseURL(baseURL)}
	for _, fn := range optFns {
		fn(c)
	}
	return c
}

// Search implements core.WebSearcher. Server-side failures are marked
// transient so callers may retry them; malformed payloads are not.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]core.WebResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get("/search")
	if err != nil {
		return nil, &core.TransientError{Err: fmt.Errorf("web search request: %w", err)}
	}
	if resp.StatusCode() >= 500 {
		return nil, &core.TransientError{Err: fmt.Errorf("web search: status %d", resp.StatusCode())}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("web search: status %d", resp.StatusCode())
	}

	var results []core.WebResult
	for _, r := range gjson.GetBytes(resp.Body(), "results").Array() {
		results = append(results, core.WebResult{
			Title:   r.Get("title").String(),
			URL:     r.Get("url").String(),
			Snippet: r.Get("snippet").String(),
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}
