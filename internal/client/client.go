// Package client is a typed HTTP client for the segd API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"segd/pkg/types"
)

// APIError is a non-2xx response decoded from the server's error payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("segd: %d %s", e.Status, e.Message)
}

// StatusCode reports the HTTP status of the failed request.
func (e *APIError) StatusCode() int { return e.Status }

// Client talks to one segd server.
type Client struct {
	baseURL  string
	http     *http.Client
	logLevel string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogLevel asks the server to log this client's requests at lvl
// (sent as X-Log-Level).
func WithLogLevel(lvl string) Option {
	return func(c *Client) { c.logLevel = lvl }
}

// New returns a client for baseURL, e.g. http://127.0.0.1:8000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// AMG on large images on CPU can take minutes.
		http: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Index calls GET / and returns the banner message.
func (c *Client) Index(ctx context.Context) (string, error) {
	var out types.IndexResponse
	if err := c.do(ctx, http.MethodGet, "/", nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Health reports whether /healthz answered 200.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Ready reports whether /readyz answered 200.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/readyz", nil, nil)
	if ae, ok := err.(*APIError); ok && ae.Status == http.StatusServiceUnavailable {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) Models(ctx context.Context) ([]types.Model, error) {
	var out types.ModelsResponse
	err := c.do(ctx, http.MethodGet, "/models", nil, &out)
	return out.Models, err
}

func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

func (c *Client) Predict(ctx context.Context, req types.PredictRequest) (types.PredictResponse, error) {
	var out types.PredictResponse
	err := c.do(ctx, http.MethodPost, "/predict", req, &out)
	return out, err
}

func (c *Client) BoxSegment(ctx context.Context, req types.BoxSegmentRequest) (types.BoxSegmentResponse, error) {
	var out types.BoxSegmentResponse
	err := c.do(ctx, http.MethodPost, "/box_segment", req, &out)
	return out, err
}

func (c *Client) AutoSegment(ctx context.Context, req types.AutoSegmentRequest) (types.AutoSegmentResponse, error) {
	var out types.AutoSegmentResponse
	err := c.do(ctx, http.MethodPost, "/auto_segment", req, &out)
	return out, err
}

func (c *Client) AutoSegmentAdaptive(ctx context.Context, req types.AutoSegmentRequest) (types.AdaptiveSegmentResponse, error) {
	var out types.AdaptiveSegmentResponse
	err := c.do(ctx, http.MethodPost, "/auto_segment_adaptive", req, &out)
	return out, err
}

func (c *Client) ComputeEmbedding(ctx context.Context, req types.ComputeEmbeddingRequest) (types.ComputeEmbeddingResponse, error) {
	var out types.ComputeEmbeddingResponse
	err := c.do(ctx, http.MethodPost, "/compute_embedding", req, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.logLevel != "" {
		req.Header.Set("X-Log-Level", c.logLevel)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	ae := &APIError{Status: resp.StatusCode}
	var er types.ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		ae.Message = er.Error
	} else {
		ae.Message = strings.TrimSpace(string(raw))
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(resp.StatusCode)
	}
	return ae
}
