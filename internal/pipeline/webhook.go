package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postpilot/backend/internal/transcode"
	"github.com/postpilot/backend/internal/videojob"
)

// ErrMissingJobID means the webhook payload carried no correlating job id.
var ErrMissingJobID = errors.New("webhook payload has no video job id")

// HandleTranscodeWebhook processes a transcoding callback. Providers may
// redeliver webhooks, so a terminal job makes this a no-op; interim progress
// updates are acknowledged without touching job state.
func (p *Pipeline) HandleTranscodeWebhook(ctx context.Context, payload *transcode.WebhookPayload) error {
	jobID := payload.JobID()
	if jobID == "" {
		return ErrMissingJobID
	}

	job, err := p.store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s for webhook: %w", jobID, err)
	}

	if job.Status.Terminal() {
		p.logger.Info("Webhook for terminal job, skipping",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	if payload.Failed() {
		return p.failJob(ctx, job.ID, "transcoding failed: "+payload.ErrorText())
	}

	// A completed callback with no outputs is terminal too. No poll message
	// is in flight at this stage, so treating it as progress would leave the
	// job in processing with nothing left to drive it.
	if payload.Status == transcode.WebhookCompleted && len(payload.Outputs) == 0 {
		return p.failJob(ctx, job.ID, "transcoding completed without outputs")
	}

	if !payload.Succeeded() {
		p.logger.Debug("Transcode progress update",
			slog.String("job_id", job.ID),
			slog.Float64("progress", payload.Progress),
		)
		return nil
	}

	outputKey := payload.Outputs[0].Path
	if err := p.store.SetTranscodedStorageKey(ctx, job.ID, outputKey); err != nil {
		if errors.Is(err, videojob.ErrTerminalState) {
			return nil
		}
		return videojob.NewRetryableError(err)
	}

	data, err := p.media.Get(ctx, outputKey)
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("failed to read transcoded media: %v", err))
	}

	// One attempt; a transcoded file the platform still rejects is fatal.
	mediaID, err := p.uploader.UploadMedia(ctx, data, "video/mp4")
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("upload of transcoded media failed: %v", err))
	}

	if err := p.store.SetPlatformMediaID(ctx, job.ID, mediaID); err != nil {
		if errors.Is(err, videojob.ErrTerminalState) {
			return nil
		}
		return videojob.NewRetryableError(err)
	}

	p.logger.Info("Transcoded media uploaded",
		slog.String("job_id", job.ID),
		slog.String("output_key", outputKey),
		slog.String("media_id", mediaID),
	)

	return p.finalize(ctx, job, mediaID)
}
