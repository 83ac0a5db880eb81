// Package client provides test clients for e2e scenarios.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/c360studio/coach/analysis"
	"github.com/c360studio/coach/cache"
	"github.com/c360studio/coach/rubric"
)

// CoachClient provides HTTP operations against the coach API for e2e tests.
type CoachClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoachClient creates a new client for the coach HTTP API.
func NewCoachClient(baseURL string, timeout time.Duration) *CoachClient {
	return &CoachClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health checks the /healthz endpoint.
func (c *CoachClient) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/healthz")
	return err
}

// Analyze submits an analysis request and returns the report.
func (c *CoachClient) Analyze(ctx context.Context, req *analysis.Request) (*analysis.Report, error) {
	body, err := c.post(ctx, "/api/v1/analyze", req)
	if err != nil {
		return nil, err
	}

	var report analysis.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w (body: %s)", err, string(body))
	}
	return &report, nil
}

// CacheStats retrieves the cache hit/miss counters.
func (c *CoachClient) CacheStats(ctx context.Context) (*cache.Stats, error) {
	body, err := c.get(ctx, "/api/v1/cache/stats")
	if err != nil {
		return nil, err
	}

	var stats cache.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &stats, nil
}

// ResetCacheStats zeroes the cache counters.
func (c *CoachClient) ResetCacheStats(ctx context.Context) error {
	_, err := c.post(ctx, "/api/v1/cache/reset", nil)
	return err
}

// InvalidateCache purges cached results for a role/dimension pair and
// returns the number of entries removed.
func (c *CoachClient) InvalidateCache(ctx context.Context, role rubric.Role, dimension rubric.Dimension, version string) (int, error) {
	body, err := c.post(ctx, "/api/v1/cache/invalidate", map[string]string{
		"role":      role.String(),
		"dimension": dimension.String(),
		"version":   version,
	})
	if err != nil {
		return 0, err
	}

	var out struct {
		Invalidated int `json:"invalidated"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("unmarshal invalidate response: %w", err)
	}
	return out.Invalidated, nil
}

// ListRubrics retrieves the loaded rubric versions.
func (c *CoachClient) ListRubrics(ctx context.Context) ([]*rubric.Version, error) {
	body, err := c.get(ctx, "/api/v1/rubrics")
	if err != nil {
		return nil, err
	}

	var versions []*rubric.Version
	if err := json.Unmarshal(body, &versions); err != nil {
		return nil, fmt.Errorf("unmarshal rubrics: %w", err)
	}
	return versions, nil
}

func (c *CoachClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *CoachClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *CoachClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
