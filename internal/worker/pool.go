package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postpilot/backend/internal/videojob"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case step, ok := <-w.stepsChan:
			if !ok {
				return
			}

			err := w.processStep(ctx, step)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("job_id", step.msg.JobID),
				)
				continue
			}

			if err != nil {
				w.logger.Error("Step processing failed",
					slog.String("worker_name", workerName),
					slog.String("job_id", step.msg.JobID),
					slog.String("error", err.Error()),
				)

				requeue := w.shouldRequeueStep(err)
				if nackErr := channel.Nack(step.deliveryTag, false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("job_id", step.msg.JobID),
						slog.String("error", nackErr.Error()),
					)
				} else {
					w.logger.Info("Message NACKed",
						slog.String("worker_name", workerName),
						slog.String("job_id", step.msg.JobID),
						slog.Bool("requeue", requeue),
					)
				}
				continue
			}

			if ackErr := channel.Ack(step.deliveryTag, false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("job_id", step.msg.JobID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

// shouldRequeueStep decides the NACK requeue flag. Only infrastructure
// failures (DB, queue publish) are worth replaying; everything else was
// either persisted to the job row or can never succeed.
func (w *Worker) shouldRequeueStep(err error) bool {
	var retryable *videojob.RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	if errors.Is(err, videojob.ErrJobNotFound) {
		return false
	}

	return false
}
