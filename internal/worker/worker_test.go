package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/backend/internal/pipeline"
	"github.com/postpilot/backend/internal/videojob"
)

type stubRunner struct {
	msgs []pipeline.PollMessage
	err  error
}

func (s *stubRunner) Poll(_ context.Context, msg pipeline.PollMessage) error {
	s.msgs = append(s.msgs, msg)
	return s.err
}

func newTestWorker(runner PollRunner) *Worker {
	return NewWorker(&Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Pipeline:    runner,
		WorkerID:    "worker-test",
		Concurrency: 1,
		JobTimeout:  time.Second,
	})
}

func TestShouldRequeueStep(t *testing.T) {
	w := newTestWorker(&stubRunner{})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "retryable infrastructure error",
			err:  videojob.NewRetryableError(fmt.Errorf("db connection reset")),
			want: true,
		},
		{
			name: "wrapped retryable error",
			err:  fmt.Errorf("step failed: %w", videojob.NewRetryableError(fmt.Errorf("publish failed"))),
			want: true,
		},
		{
			name: "job not found",
			err:  videojob.ErrJobNotFound,
			want: false,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("something else"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldRequeueStep(tt.err))
		})
	}
}

func TestProcessStep(t *testing.T) {
	t.Run("passes message through", func(t *testing.T) {
		runner := &stubRunner{}
		w := newTestWorker(runner)

		err := w.processStep(context.Background(), &stepMessage{
			msg: pipeline.PollMessage{JobID: "job-1", Attempt: 7},
		})
		require.NoError(t, err)

		require.Len(t, runner.msgs, 1)
		assert.Equal(t, "job-1", runner.msgs[0].JobID)
		assert.Equal(t, 7, runner.msgs[0].Attempt)
	})

	t.Run("propagates pipeline error", func(t *testing.T) {
		runner := &stubRunner{err: fmt.Errorf("boom")}
		w := newTestWorker(runner)

		err := w.processStep(context.Background(), &stepMessage{
			msg: pipeline.PollMessage{JobID: "job-1"},
		})
		assert.Error(t, err)
	})
}
