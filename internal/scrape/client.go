// Package scrape talks to the run-based scraping service that resolves a
// social platform URL into a directly downloadable media URL. The service
// has no webhook support, so callers poll run status (the transcoding
// service, by contrast, pushes a callback).
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Terminal run statuses. Anything else means the run is still executing.
const (
	RunSucceeded = "SUCCEEDED"
	RunFailed    = "FAILED"
	RunAborted   = "ABORTED"
)

// Run is the current state of an external scraping run.
type Run struct {
	Status    string `json:"status"`
	DatasetID string `json:"resultDatasetId"`
}

// Terminal reports whether the run has finished, successfully or not.
func (r Run) Terminal() bool {
	switch r.Status {
	case RunSucceeded, RunFailed, RunAborted:
		return true
	}
	return false
}

// Item is one entry of a run's result dataset. The service is inconsistent
// about field names across scraper versions, so both spellings of the media
// URL and duration are parsed and resolved through accessors.
type Item struct {
	MediaURL        string  `json:"mediaUrl"`
	VideoURL        string  `json:"video_url"`
	Duration        float64 `json:"duration"`
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Title           string  `json:"title"`
}

// ResolvedURL returns the direct media URL, whichever field carried it.
func (i Item) ResolvedURL() string {
	if i.MediaURL != "" {
		return i.MediaURL
	}
	return i.VideoURL
}

// ResolvedDuration returns the reported duration in seconds, or zero when
// the scraper did not include one.
func (i Item) ResolvedDuration() float64 {
	if i.Duration > 0 {
		return i.Duration
	}
	return i.DurationSeconds
}

// Client is an HTTP client for the scraping service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a scraping service client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// StartRun submits a new scraping run for the given source URL and returns
// the run id. The caller must persist the id before doing anything else so a
// retried step resumes the same run instead of starting another.
func (c *Client) StartRun(ctx context.Context, sourceURL, quality string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"url":     sourceURL,
		"quality": quality,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to start run: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode run response: %w", err)
	}
	if result.RunID == "" {
		return "", fmt.Errorf("run response carried no run id")
	}

	return result.RunID, nil
}

// GetRun fetches the current status of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (Run, error) {
	url := fmt.Sprintf("%s/run/%s", c.baseURL, runID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Run{}, fmt.Errorf("failed to get run status: status %d, body: %s", resp.StatusCode, string(body))
	}

	var run Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return Run{}, fmt.Errorf("failed to decode run status: %w", err)
	}

	return run, nil
}

// DatasetItems fetches the result items of a finished run.
func (c *Client) DatasetItems(ctx context.Context, datasetID string) ([]Item, error) {
	url := fmt.Sprintf("%s/datasets/%s/items", c.baseURL, datasetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get dataset items: status %d, body: %s", resp.StatusCode, string(body))
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode dataset items: %w", err)
	}

	return items, nil
}
