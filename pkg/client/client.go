package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/falconmesh/falconmesh/pkg/logger"
)

// Hub is the client for the coordination hub's HTTP API
type Hub struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds the configuration for the hub client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new hub client with the given configuration
func NewClient(cfg Config) (*Hub, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Hub{
		baseURL: u.String(),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// BaseURL returns the hub address this client talks to
func (c *Hub) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with JSON encoding and error handling
func (c *Hub) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	fullURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer func(Body io.ReadCloser) {
			if err := Body.Close(); err != nil {
				logger.Errorf("failed to close response body: %v", err)
			}
		}(resp.Body)
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

// decodeResponse decodes a JSON response into the provided interface
func decodeResponse(resp *http.Response, v interface{}) error {
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Errorf("failed to close response body: %v", err)
		}
	}(resp.Body)

	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Health checks hub liveness and returns its occupancy counters
func (c *Hub) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check health: %w", err)
	}

	var health HealthResponse
	if err := decodeResponse(resp, &health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

// HealthResponse is the hub's health report
type HealthResponse struct {
	OK      bool   `json:"ok"`
	TS      string `json:"ts"`
	Nodes   int    `json:"nodes"`
	WSTelem int    `json:"ws_telem"`
	WSUAV   int    `json:"ws_uav"`
}
