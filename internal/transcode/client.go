// Package transcode submits media to the external transcoding service and
// defines the webhook payload the service pushes back. This integration is
// deliberately push-based: the provider supports webhooks, so unlike the
// scraping service there is no polling loop here. Submit-and-wait only.
package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fixed output profile: H.264/AAC MP4 is what the target platform accepts.
const (
	outputVideoCodec   = "h264"
	outputAudioCodec   = "aac"
	outputFormat       = "mp4"
	outputVideoBitrate = "2000k"
	outputAudioBitrate = "128k"
	outputWidth        = 1080
)

// SubmitRequest describes one transcoding job.
type SubmitRequest struct {
	// SourceURL is a time-limited URL to the stored original media.
	SourceURL string
	// OutputKey is the object store location the service writes the result to.
	OutputKey string
	// WebhookURL receives the completion callback.
	WebhookURL string
	// VideoJobID rides along as opaque metadata so the callback can be
	// correlated without any in-memory state.
	VideoJobID string
}

// Client is an HTTP client for the transcoding service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a transcoding service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit starts a remote transcoding job and returns its id. Completion
// arrives asynchronously on the webhook; this call only confirms acceptance.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"source":  req.SourceURL,
		"webhook": req.WebhookURL,
		"outputs": []map[string]interface{}{
			{
				"path":          req.OutputKey,
				"format":        outputFormat,
				"video_codec":   outputVideoCodec,
				"audio_codec":   outputAudioCodec,
				"video_bitrate": outputVideoBitrate,
				"audio_bitrate": outputAudioBitrate,
				"width":         outputWidth,
			},
		},
		"metadata": map[string]string{
			"videoJobId": req.VideoJobID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/job", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create transcode request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to submit transcode job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to submit transcode job: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcode response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("transcode response carried no job id")
	}

	return result.ID, nil
}
