// Package loadclient provides the HTTP client benchmark runs use to issue
// load against target endpoints.
package loadclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config configures the load client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	TLSSkipVerify bool
	Headers       map[string]string
}

// Client issues benchmark requests against the target service. It never
// retries: each request is one latency sample, and a retried request would
// fold several round trips into a single measurement and hide the failure
// the error rate is supposed to count.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	mu         sync.RWMutex
}

// NewClient creates a load client for the given target.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
		// Virtual users all target one host, so the per-host idle pool
		// must cover the full concurrency level.
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 256,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		headers: make(map[string]string),
	}

	client.headers["Content-Type"] = "application/json"
	client.headers["Accept"] = "application/json"
	client.headers["User-Agent"] = "VectorCraft-Bench/1.0"

	for k, v := range cfg.Headers {
		client.headers[k] = v
	}

	return client, nil
}

// Request represents a single benchmark request.
type Request struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     map[string]string
	Body        interface{}
}

// Response captures the outcome of one benchmark request. Transport
// failures land in Err instead of a separate return value because the
// runner treats them as failed samples, not as run-level errors.
type Response struct {
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Success reports whether the request completed with a non-error status.
func (r *Response) Success() bool {
	return r.Err == nil && r.StatusCode > 0 && r.StatusCode < 400
}

// Do executes one request and measures it. The response body is drained
// and discarded so the underlying connection can be reused.
func (c *Client) Do(ctx context.Context, req Request) *Response {
	u, err := c.buildURL(req.Path, req.QueryParams)
	if err != nil {
		return &Response{Err: fmt.Errorf("building URL: %w", err)}
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return &Response{Err: fmt.Errorf("marshaling request body: %w", err)}
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bodyReader)
	if err != nil {
		return &Response{Err: fmt.Errorf("creating HTTP request: %w", err)}
	}

	c.setHeaders(httpReq, req.Headers)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)

	resp := &Response{
		Duration: duration,
		Err:      err,
	}

	if httpResp != nil {
		resp.StatusCode = httpResp.StatusCode
		if httpResp.Body != nil {
			_, _ = io.Copy(io.Discard, httpResp.Body)
			_ = httpResp.Body.Close()
		}
	}

	return resp
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, queryParams map[string]string) *Response {
	return c.Do(ctx, Request{
		Method:      http.MethodGet,
		Path:        path,
		QueryParams: queryParams,
	})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) *Response {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// buildURL builds a complete URL from path and query parameters.
func (c *Client) buildURL(path string, queryParams map[string]string) (*url.URL, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	u, err := baseURL.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	return u, nil
}

// setHeaders sets headers on the request.
func (c *Client) setHeaders(req *http.Request, customHeaders map[string]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	for k, v := range customHeaders {
		req.Header.Set(k, v)
	}
}

// SetHeader sets a default header for all requests.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// GetBaseURL returns the client's base URL.
func (c *Client) GetBaseURL() string {
	return c.baseURL
}
