package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postpilot/backend/internal/publisher"
	"github.com/postpilot/backend/internal/videojob"
)

// finalize materializes the pending post with the uploaded media attached
// and performs the publish-or-schedule action, once per job.
//
// A publish failure after the media is ready does not revert the job: the
// acquisition work succeeded and must not be thrown away over a downstream
// posting glitch. The failure is recorded on the completed row so it stays
// queryable.
func (p *Pipeline) finalize(ctx context.Context, job *videojob.VideoJob, mediaID string) error {
	content, err := job.Content()
	if err != nil {
		return p.failJob(ctx, job.ID, fmt.Sprintf("cannot publish: %v", err))
	}

	result, err := p.publisher.Publish(ctx, &publisher.Request{
		UserID:      job.UserID,
		ThreadID:    job.ThreadID,
		AccountID:   content.AccountID,
		Text:        content.Text,
		MediaIDs:    append(content.MediaIDs, mediaID),
		Action:      content.Action,
		ScheduledAt: content.ScheduledAt,
	})
	if err != nil {
		p.logger.Error("Publish step failed after media ready",
			slog.String("job_id", job.ID),
			slog.String("media_id", mediaID),
			slog.Any("error", err),
		)

		note := fmt.Sprintf("media ready but publish failed: %v", err)
		if markErr := p.store.MarkCompleted(ctx, job.ID, note); markErr != nil && !errors.Is(markErr, videojob.ErrTerminalState) {
			return videojob.NewRetryableError(markErr)
		}
		return nil
	}

	if result.TweetID != "" {
		if err := p.store.SetTweetID(ctx, job.ID, result.TweetID); err != nil && !errors.Is(err, videojob.ErrTerminalState) {
			p.logger.Warn("Failed to record tweet id",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
		}
	}

	if err := p.store.MarkCompleted(ctx, job.ID, ""); err != nil {
		if errors.Is(err, videojob.ErrTerminalState) {
			return nil
		}
		return videojob.NewRetryableError(err)
	}

	p.logger.Info("Video job published",
		slog.String("job_id", job.ID),
		slog.String("tweet_id", result.TweetID),
		slog.String("action", content.Action),
	)

	return nil
}
