// Package scrape implements the client for the external scraping service.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tndd/datadoggo-v3-rss/internal/model"
)

// DefaultTimeout is the per-call budget for scrape requests.
const DefaultTimeout = 15 * time.Second

// Client calls the scraping service's /fetch endpoint. The HTTP client is
// injected and carries the timeout; Client itself holds no mutable state and
// is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for the service rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Fetch posts the scrape request and decodes the service reply.
//
// Transport failures and malformed success bodies are returned as errors.
// A non-2xx HTTP reply is not an error: it is mapped to a ScrapeResponse
// carrying only the numeric status, matching how an embedded non-success
// status_code is treated downstream.
func (c *Client) Fetch(ctx context.Context, req model.ScrapeRequest) (model.ScrapeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.ScrapeResponse{}, fmt.Errorf("encode scrape request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fetch", bytes.NewReader(body))
	if err != nil {
		return model.ScrapeResponse{}, fmt.Errorf("build scrape request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return model.ScrapeResponse{}, fmt.Errorf("call scrape service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// No structured error body is assumed; only the status survives.
		return model.ScrapeResponse{StatusCode: resp.StatusCode}, nil
	}

	var out model.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.ScrapeResponse{}, fmt.Errorf("decode scrape response: %w", err)
	}
	return out, nil
}
