// Package upload hands stored media to the social platform's media-upload
// API and screens uploads against size, duration and quota limits before
// any bytes move.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// APIError is a structured failure from the media-upload API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upload API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// Substrings the platform uses in codec/container rejections. Matching is
// case-insensitive against the full error text.
var unsupportedFormatMarkers = []string{
	"unsupported format",
	"invalid format",
	"invalidcontent",
	"media type unrecognized",
	"codec not supported",
	"unsupportedmedia",
}

// IsUnsupportedFormat reports whether the upload failed specifically because
// the platform rejected the codec or container. Only this class of failure
// justifies a transcoding fallback.
func IsUnsupportedFormat(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	text := strings.ToLower(apiErr.Code + " " + apiErr.Message)
	for _, marker := range unsupportedFormatMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Client is an HTTP client for the platform media-upload API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a media-upload API client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// UploadMedia uploads the media bytes once and returns the platform media
// id. The adapter never retries this call; retry policy is "try original,
// then try transcoded once" and lives in the pipeline.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("media", "video")
	if err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := writer.WriteField("media_type", mimeType); err != nil {
		return "", fmt.Errorf("failed to write media type field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media/upload", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		return "", apiErr
	}

	var result struct {
		MediaID string `json:"media_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.MediaID == "" {
		return "", fmt.Errorf("upload response carried no media id")
	}

	return result.MediaID, nil
}
