// Package sweeper triggers the recurring sweep of a running API through its
// pipeline endpoint.
package sweeper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"lana/internal/recurring"
)

// Config holds the sweeper configuration.
type Config struct {
	APIURL         string
	PipelineAPIKey string
	RequestTimeout time.Duration
}

// LoadConfig reads configuration from environment variables and validates
// required fields.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		APIURL:         os.Getenv("LANA_API_URL"),
		PipelineAPIKey: os.Getenv("PIPELINE_API_KEY"),
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("LANA_API_URL is required")
	}
	if cfg.PipelineAPIKey == "" {
		return nil, fmt.Errorf("PIPELINE_API_KEY is required")
	}

	timeout, err := parseTimeout(os.Getenv("SWEEP_TIMEOUT"))
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = timeout
	return cfg, nil
}

// A sweep covers every user, so the default is longer than a request.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 5 * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid SWEEP_TIMEOUT %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("SWEEP_TIMEOUT must be positive, got %v", d)
	}
	return d, nil
}

// Client communicates with the pipeline API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new pipeline API client.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SweepRecurring asks the API to materialize due rules for every user and
// returns the run counts.
func (c *Client) SweepRecurring(ctx context.Context) (recurring.RunResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/pipeline/recurring/sweep", http.NoBody)
	if err != nil {
		return recurring.RunResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return recurring.RunResult{}, fmt.Errorf("sweeping recurring rules: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return recurring.RunResult{}, fmt.Errorf("sweeping recurring rules: unexpected status %d", resp.StatusCode)
	}

	var result recurring.RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return recurring.RunResult{}, fmt.Errorf("decoding sweep response: %w", err)
	}
	return result, nil
}
