// Package client issues HTTP requests against the tuner API, handling
// operator login and bearer-token renewal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vectorcraft/tuner/tools/loadgen/internal/config"
)

// Result captures the outcome of one request.
type Result struct {
	StatusCode int
	Latency    time.Duration
	Body       []byte
	Err        error
}

// Failed reports whether the request should count as a failure:
// transport errors and any status of 400 or above.
func (r Result) Failed() bool {
	return r.Err != nil || r.StatusCode >= 400
}

// Client wraps an http.Client with base-URL joining and operator auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       config.AuthConfig

	mu    sync.Mutex
	token string
}

// New creates a client for the configured target.
func New(target config.TargetConfig, auth config.AuthConfig) (*Client, error) {
	if target.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if _, err := url.Parse(target.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: target.Timeout},
		baseURL:    strings.TrimRight(target.BaseURL, "/"),
		auth:       auth,
	}, nil
}

// Do issues one request. When withAuth is set, a bearer token is
// attached, logging in first if none is held. A 401 clears the cached
// token so the next attempt logs in again; the failed request still
// counts as a failure.
func (c *Client) Do(ctx context.Context, method, path, body string, withAuth bool) Result {
	var token string
	if withAuth {
		var err error
		token, err = c.ensureToken(ctx)
		if err != nil {
			return Result{Err: fmt.Errorf("login: %w", err)}
		}
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Result{Err: err}
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Result{Latency: latency, Err: err}
	}
	defer resp.Body.Close()

	// Cap body reads; harvested fields live near the top of responses
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusUnauthorized && withAuth {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}

	return Result{StatusCode: resp.StatusCode, Latency: latency, Body: data}
}

// ensureToken returns the cached bearer token, logging in when empty.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	if c.auth.Username == "" {
		return "", nil
	}

	payload, err := json.Marshal(map[string]string{
		"username": c.auth.Username,
		"password": c.auth.Password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.auth.LoginPath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var loginResp struct {
		Data struct {
			Token struct {
				AccessToken string `json:"access_token"`
			} `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if loginResp.Data.Token.AccessToken == "" {
		return "", fmt.Errorf("login response carried no token")
	}

	c.token = loginResp.Data.Token.AccessToken
	return c.token, nil
}
