package worker

import (
	"context"
	"log/slog"
	"time"
)

// processStep runs one polling step under the configured timeout.
func (w *Worker) processStep(ctx context.Context, step *stepMessage) error {
	start := time.Now()

	w.logger.Info("Processing polling step",
		slog.String("job_id", step.msg.JobID),
		slog.Int("attempt", step.msg.Attempt),
	)

	stepCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err := w.pipeline.Poll(stepCtx, step.msg)
	if err != nil {
		return err
	}

	w.logger.Info("Polling step finished",
		slog.String("job_id", step.msg.JobID),
		slog.Int("attempt", step.msg.Attempt),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}
