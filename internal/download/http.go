// Package download fetches resolved media bytes over plain HTTP.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher downloads a direct media URL.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a generous timeout; source videos can be
// large and the CDNs serving them slow.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Fetch streams the media at the given URL. The caller must close the
// returned reader.
func (f *Fetcher) Fetch(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download media: unexpected status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
