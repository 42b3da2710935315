package handler

import (
	"context"
	"log/slog"

	"github.com/postpilot/backend/internal/publisher"
	"github.com/postpilot/backend/internal/transcode"
	"github.com/postpilot/backend/internal/videojob"
)

// JobStore is the subset of the video job store the API needs.
type JobStore interface {
	Create(ctx context.Context, job *videojob.VideoJob) error
	GetByID(ctx context.Context, jobID string) (*videojob.VideoJob, error)
	ListByUser(ctx context.Context, userID string, filter videojob.Filter) ([]videojob.VideoJob, error)
}

// QueuePublisher enqueues the first polling message for a new video job.
// Publishing retries with backoff inside the client; by the time an error
// surfaces here the job row exists but no message does, so the caller must
// report the failure rather than pretend the job is in flight.
type QueuePublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// PostPublisher publishes posts that carry no video and need no job.
type PostPublisher interface {
	Publish(ctx context.Context, req *publisher.Request) (*publisher.Result, error)
}

// WebhookProcessor handles transcoding completion callbacks.
type WebhookProcessor interface {
	HandleTranscodeWebhook(ctx context.Context, payload *transcode.WebhookPayload) error
}

// HealthChecker reports backing-store health for the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     JobStore
	Queue     QueuePublisher
	Publisher PostPublisher
	Pipeline  WebhookProcessor
	DB        HealthChecker
}

// PostHandler handles post submission requests.
type PostHandler struct {
	logger    *slog.Logger
	store     JobStore
	queue     QueuePublisher
	publisher PostPublisher
}

// NewPostHandler creates a new PostHandler instance
func NewPostHandler(deps *Dependencies) *PostHandler {
	return &PostHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		queue:     deps.Queue,
		publisher: deps.Publisher,
	}
}

// VideoJobHandler handles video job read requests.
type VideoJobHandler struct {
	logger *slog.Logger
	store  JobStore
}

// NewVideoJobHandler creates a new VideoJobHandler instance
func NewVideoJobHandler(deps *Dependencies) *VideoJobHandler {
	return &VideoJobHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}

// WebhookHandler handles transcoding service callbacks.
type WebhookHandler struct {
	logger   *slog.Logger
	pipeline WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:   deps.Logger,
		pipeline: deps.Pipeline,
	}
}
