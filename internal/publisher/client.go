// Package publisher calls the surrounding system's publication service,
// which materializes post rows and performs the publish-or-schedule action.
// The pipeline invokes it at most once per video job.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request carries the pre-materialized post content plus the attached media.
type Request struct {
	UserID      string     `json:"user_id"`
	ThreadID    string     `json:"thread_id"`
	AccountID   string     `json:"account_id"`
	Text        string     `json:"text"`
	MediaIDs    []string   `json:"media_ids"`
	Action      string     `json:"action"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Result identifies the created post row.
type Result struct {
	TweetID string `json:"tweet_id"`
}

// Client is an HTTP client for the publication service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a publication service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Publish materializes the post and performs the requested action.
func (c *Client) Publish(ctx context.Context, req *Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publish request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/publish", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create publish request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call publication service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("publication service rejected post: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode publish response: %w", err)
	}

	return &result, nil
}
