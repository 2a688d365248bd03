package budget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 5 * time.Second

// Client is a Ledger backed by the budget ledger HTTP service.
type Client struct {
	baseURL string
	http    *http.Client
}

// Compile-time interface check.
var _ Ledger = (*Client)(nil)

// ClientOption is a functional option for Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a ledger client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("budget: baseURL must not be empty")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Status implements Ledger.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.get(ctx, "/v1/budget/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// CanMakeRequest implements Ledger.
func (c *Client) CanMakeRequest(ctx context.Context) (*Decision, error) {
	var d Decision
	if err := c.get(ctx, "/v1/budget/can-request", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RecordRequest implements Ledger.
func (c *Client) RecordRequest(ctx context.Context, rec UsageRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("budget: marshal usage record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/budget/usage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("budget: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("budget: record request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

// get performs a GET against path and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("budget: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("budget: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("budget: decode %s response: %w", path, err)
	}
	return nil
}

// statusError reads a bounded amount of the body into the error message.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("budget: %s %s: status %d: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, body)
}
