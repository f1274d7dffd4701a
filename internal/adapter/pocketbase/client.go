// Package pocketbase talks to a PocketBase server: the quake collection for
// persistence and the users collection for authentication.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const usersCollection = "users"

// Client is a minimal PocketBase REST client.
type Client struct {
	baseURL    string
	collection string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithToken authenticates record requests with an admin or user token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the server at baseURL storing quakes in
// collection.
func NewClient(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the PocketBase error envelope.
type apiError struct {
	Status  int                   `json:"code"`
	Message string                `json:"message"`
	Data    map[string]fieldError `json:"data"`
}

type fieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("pocketbase: status %d: %s", e.Status, e.Message)
	}
	fields := make([]string, 0, len(e.Data))
	for name, fe := range e.Data {
		fields = append(fields, name+": "+fe.Code)
	}
	return fmt.Sprintf("pocketbase: status %d: %s (%s)", e.Status, e.Message, strings.Join(fields, ", "))
}

// fieldCode returns the validation code reported for field, if any.
func (e *apiError) fieldCode(field string) string {
	return e.Data[field].Code
}

func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/api/collections/%s", c.baseURL, url.PathEscape(collection))
}

func (c *Client) recordsURL(collection string) string {
	return c.collectionURL(collection) + "/records"
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
// Responses outside 2xx become *apiError.
func (c *Client) do(ctx context.Context, method, fullURL string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// quoteFilter renders s as a PocketBase filter string literal.
func quoteFilter(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
