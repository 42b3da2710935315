// Package worker consumes video job polling messages from RabbitMQ and
// executes one pipeline step per delivery. Each delivery is independent;
// waiting between polls lives in the queue's delay topology, never in a
// worker goroutine.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/backend/internal/pipeline"
	"github.com/postpilot/backend/shared/rabbitmq"
)

// PollRunner executes one polling step. Satisfied by *pipeline.Pipeline.
type PollRunner interface {
	Poll(ctx context.Context, msg pipeline.PollMessage) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Pipeline      PollRunner
	WorkerID      string
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
}

// Worker represents the video job worker
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	pipeline      PollRunner
	workerID      string
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration

	stepsChan chan *stepMessage
	wg        sync.WaitGroup
	stopChan  chan struct{}
}

// stepMessage pairs a parsed polling message with its delivery tag for
// ACK/NACK after processing.
type stepMessage struct {
	msg         pipeline.PollMessage
	deliveryTag uint64
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		pipeline:      cfg.Pipeline,
		workerID:      cfg.WorkerID,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobTimeout:    cfg.JobTimeout,
		stepsChan:     make(chan *stepMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing polling steps. Blocks until the
// context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight steps to finish.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
