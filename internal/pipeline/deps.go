package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/postpilot/backend/internal/publisher"
	"github.com/postpilot/backend/internal/scrape"
	"github.com/postpilot/backend/internal/transcode"
	"github.com/postpilot/backend/internal/upload"
	"github.com/postpilot/backend/internal/videojob"
)

// PollMessage is the queue message driving one polling step. Attempt counts
// the polls already performed, so the first message carries zero.
type PollMessage struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

// JobStore is the durable video job record, the pipeline's single source of
// truth.
type JobStore interface {
	GetByID(ctx context.Context, jobID string) (*videojob.VideoJob, error)
	Claim(ctx context.Context, jobID string) error
	SetExternalRunID(ctx context.Context, jobID, runID string) (string, error)
	SetStorageKey(ctx context.Context, jobID, key string) error
	SetTranscodedStorageKey(ctx context.Context, jobID, key string) error
	SetPlatformMediaID(ctx context.Context, jobID, mediaID string) error
	SetTweetID(ctx context.Context, jobID, tweetID string) error
	MarkCompleted(ctx context.Context, jobID, note string) error
	MarkFailed(ctx context.Context, jobID, message string) error
	MonthlyTranscodeCount(ctx context.Context, userID string) (int, error)
}

// Scraper resolves a platform URL into a direct media URL via external runs.
type Scraper interface {
	StartRun(ctx context.Context, sourceURL, quality string) (string, error)
	GetRun(ctx context.Context, runID string) (scrape.Run, error)
	DatasetItems(ctx context.Context, datasetID string) ([]scrape.Item, error)
}

// Fetcher downloads resolved media bytes.
type Fetcher interface {
	Fetch(ctx context.Context, mediaURL string) (io.ReadCloser, error)
}

// MediaStore is the durable object store for original and transcoded media.
type MediaStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Uploader is the social platform's media-upload API.
type Uploader interface {
	UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Transcoder submits asynchronous transcode jobs.
type Transcoder interface {
	Submit(ctx context.Context, req transcode.SubmitRequest) (string, error)
}

// Publisher performs the one-time publish-or-schedule action.
type Publisher interface {
	Publish(ctx context.Context, req *publisher.Request) (*publisher.Result, error)
}

// Requeuer schedules a future polling step.
type Requeuer interface {
	PublishDelayed(ctx context.Context, body []byte, contentType string, delay time.Duration) error
}

// Config holds pipeline tunables.
type Config struct {
	// Quality hint passed to the scraping service.
	ScrapeQuality string
	// WebhookURL is where the transcoding service posts its callback.
	WebhookURL string
	// PresignTTL bounds how long the transcoder can read the source object.
	PresignTTL time.Duration
	// Limits configure pre-upload screening.
	Limits upload.Limits
}
