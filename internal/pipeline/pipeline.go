// Package pipeline coordinates the asynchronous video acquisition and
// publication flow. Every step runs as an independent stateless invocation
// triggered by a queue delivery or a webhook; all waiting lives in the
// queue's delay mechanism. Correctness under duplicate or out-of-order
// triggers relies on idempotent, status-gated job transitions, not locks.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/postpilot/backend/internal/scrape"
	"github.com/postpilot/backend/internal/transcode"
	"github.com/postpilot/backend/internal/upload"
	"github.com/postpilot/backend/internal/videojob"
)

// Pipeline executes the processing steps of a video job.
type Pipeline struct {
	store      JobStore
	scraper    Scraper
	fetcher    Fetcher
	media      MediaStore
	uploader   Uploader
	transcoder Transcoder
	publisher  Publisher
	requeuer   Requeuer
	cfg        Config
	logger     *slog.Logger
}

// New wires a Pipeline from its collaborators. All clients are constructed
// once at process start and injected; the pipeline owns none of them.
func New(store JobStore, scraper Scraper, fetcher Fetcher, media MediaStore,
	uploader Uploader, transcoder Transcoder, pub Publisher, requeuer Requeuer,
	cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		scraper:    scraper,
		fetcher:    fetcher,
		media:      media,
		uploader:   uploader,
		transcoder: transcoder,
		publisher:  pub,
		requeuer:   requeuer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Poll executes one polling step for a job. It is safe to call with
// duplicate or stale messages: a terminal job makes the step a no-op.
func (p *Pipeline) Poll(ctx context.Context, msg PollMessage) error {
	job, err := p.store.GetByID(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", msg.JobID, err)
	}

	if job.Status.Terminal() {
		p.logger.Info("Poll for terminal job, skipping",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	if job.Status == videojob.StatusPending {
		if err := p.store.Claim(ctx, job.ID); err != nil {
			if !errors.Is(err, videojob.ErrNotClaimable) {
				return videojob.NewRetryableError(err)
			}
			// Raced with another trigger; re-read and bail if it finished.
			job, err = p.store.GetByID(ctx, msg.JobID)
			if err != nil {
				return fmt.Errorf("failed to reload job %s: %w", msg.JobID, err)
			}
			if job.Status.Terminal() {
				return nil
			}
		}
	}

	runID, err := p.startOrResume(ctx, job)
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to start download run: %v", err))
	}

	run, err := p.scraper.GetRun(ctx, runID)
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to query download run %s: %v", runID, err))
	}

	switch run.Status {
	case scrape.RunSucceeded:
		return p.transferAndUpload(ctx, job, run.DatasetID)

	case scrape.RunFailed, scrape.RunAborted:
		return p.failJob(ctx, job.ID, fmt.Sprintf("download run %s ended with status %s", runID, run.Status))

	default:
		// Still running.
		if msg.Attempt >= MaxPollAttempts {
			return p.failJob(ctx, job.ID, fmt.Sprintf("download timed out after %d polling attempts", msg.Attempt))
		}
		return p.requeue(ctx, msg)
	}
}

// startOrResume submits a download run exactly once per job. The run id is
// persisted before anything else happens, so a replayed step reuses the run
// instead of double-submitting.
func (p *Pipeline) startOrResume(ctx context.Context, job *videojob.VideoJob) (string, error) {
	if job.ExternalRunID != nil {
		return *job.ExternalRunID, nil
	}

	runID, err := p.scraper.StartRun(ctx, job.VideoURL, p.cfg.ScrapeQuality)
	if err != nil {
		return "", err
	}

	persisted, err := p.store.SetExternalRunID(ctx, job.ID, runID)
	if err != nil {
		return "", err
	}

	p.logger.Info("Download run started",
		slog.String("job_id", job.ID),
		slog.String("run_id", persisted),
		slog.String("platform", job.Platform.String()),
	)

	return persisted, nil
}

func (p *Pipeline) requeue(ctx context.Context, msg PollMessage) error {
	next := PollMessage{JobID: msg.JobID, Attempt: msg.Attempt + 1}
	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal poll message: %w", err)
	}

	delay := NextDelay(msg.Attempt)
	if err := p.requeuer.PublishDelayed(ctx, body, "application/json", delay); err != nil {
		return videojob.NewRetryableError(fmt.Errorf("failed to requeue poll: %w", err))
	}

	p.logger.Debug("Poll requeued",
		slog.String("job_id", msg.JobID),
		slog.Int("attempt", next.Attempt),
		slog.Duration("delay", delay),
	)

	return nil
}

// transferAndUpload moves the resolved media into object storage and runs
// the upload stage.
func (p *Pipeline) transferAndUpload(ctx context.Context, job *videojob.VideoJob, datasetID string) error {
	items, err := p.scraper.DatasetItems(ctx, datasetID)
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to fetch download results: %v", err))
	}
	if len(items) == 0 {
		return p.failJob(ctx, job.ID, "download run returned no results")
	}

	mediaURL := items[0].ResolvedURL()
	if mediaURL == "" {
		return p.failJob(ctx, job.ID, "download result carried no media url")
	}

	rc, err := p.fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to download media: %v", err))
	}
	// Buffered rather than streamed into the store: screening needs the
	// exact byte count before any upload decision, and sources do not
	// reliably send Content-Length.
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to read media stream: %v", err))
	}

	ext := extensionFromURL(mediaURL)
	key := fmt.Sprintf("videos/%s/%s%s", job.UserID, uuid.New().String(), ext)
	contentType := contentTypeForExtension(ext)

	if err := p.media.Put(ctx, key, data, contentType); err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to store media: %v", err))
	}

	// The key is recorded only after the store write succeeded, so the job
	// never references a partial object.
	if err := p.store.SetStorageKey(ctx, job.ID, key); err != nil {
		if errors.Is(err, videojob.ErrTerminalState) {
			return nil
		}
		return videojob.NewRetryableError(err)
	}

	p.logger.Info("Media transferred to storage",
		slog.String("job_id", job.ID),
		slog.String("storage_key", key),
		slog.Int("size_bytes", len(data)),
	)

	return p.uploadStored(ctx, job, key, data, contentType)
}

// uploadStored screens the media and attempts the direct platform upload,
// falling back to transcoding only on a format rejection.
func (p *Pipeline) uploadStored(ctx context.Context, job *videojob.VideoJob, key string, data []byte, contentType string) error {
	used, err := p.store.MonthlyTranscodeCount(ctx, job.UserID)
	if err != nil {
		return videojob.NewRetryableError(err)
	}

	screen := upload.Screen(int64(len(data)), used, p.cfg.Limits)
	if !screen.Allowed {
		return p.failJob(ctx, job.ID, "upload rejected: "+screen.Reason)
	}

	mediaID, err := p.uploader.UploadMedia(ctx, data, contentType)
	if err == nil {
		if err := p.store.SetPlatformMediaID(ctx, job.ID, mediaID); err != nil {
			if errors.Is(err, videojob.ErrTerminalState) {
				return nil
			}
			return videojob.NewRetryableError(err)
		}
		return p.finalize(ctx, job, mediaID)
	}

	if !upload.IsUnsupportedFormat(err) {
		return p.failJob(ctx, job.ID, fmt.Sprintf("platform upload failed: %v", err))
	}

	return p.submitTranscode(ctx, job, key)
}

// submitTranscode hands the stored media to the transcoding service and
// leaves the job in processing, awaiting the webhook.
func (p *Pipeline) submitTranscode(ctx context.Context, job *videojob.VideoJob, key string) error {
	sourceURL, err := p.media.PresignGet(ctx, key, p.cfg.PresignTTL)
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to presign media for transcoding: %v", err))
	}

	outputKey := fmt.Sprintf("transcoded/%s/%s.mp4", job.UserID, uuid.New().String())

	transcodeID, err := p.transcoder.Submit(ctx, transcode.SubmitRequest{
		SourceURL:  sourceURL,
		OutputKey:  outputKey,
		WebhookURL: p.cfg.WebhookURL,
		VideoJobID: job.ID,
	})
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to submit transcode job: %v", err))
	}

	p.logger.Info("Transcode submitted, awaiting webhook",
		slog.String("job_id", job.ID),
		slog.String("transcode_id", transcodeID),
		slog.String("output_key", outputKey),
	)

	return nil
}

// failJob marks the job failed. A job that lost the race to a terminal
// state is left untouched.
func (p *Pipeline) failJob(ctx context.Context, jobID, message string) error {
	if err := p.store.MarkFailed(ctx, jobID, message); err != nil {
		if errors.Is(err, videojob.ErrTerminalState) {
			p.logger.Warn("Job already terminal, failure not recorded",
				slog.String("job_id", jobID),
				slog.String("error", message),
			)
			return nil
		}
		return videojob.NewRetryableError(err)
	}

	return nil
}

func extensionFromURL(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return ".mp4"
	}

	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".mp4", ".mov", ".webm", ".m4v", ".avi":
		return ext
	default:
		return ".mp4"
	}
}

func contentTypeForExtension(ext string) string {
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "video/mp4"
}
