// Package usgs downloads the USGS earthquake summary feed.
package usgs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBytes bounds a feed download. The monthly "all" feed is well below it.
const maxFeedBytes = 64 << 20

// Client fetches one GeoJSON summary feed. It implements pipeline.FeedFetcher.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a feed client for url with a per-request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the feed body. Non-200 responses are errors.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("feed error: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if len(data) > maxFeedBytes {
		return nil, fmt.Errorf("feed larger than %d bytes", maxFeedBytes)
	}
	return data, nil
}
