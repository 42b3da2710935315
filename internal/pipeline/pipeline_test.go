package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/backend/internal/platform"
	"github.com/postpilot/backend/internal/publisher"
	"github.com/postpilot/backend/internal/scrape"
	"github.com/postpilot/backend/internal/transcode"
	"github.com/postpilot/backend/internal/upload"
	"github.com/postpilot/backend/internal/videojob"
)

// --- fakes ---

type fakeStore struct {
	mu             sync.Mutex
	jobs           map[string]*videojob.VideoJob
	transcodeCount int
}

func newFakeStore(jobs ...*videojob.VideoJob) *fakeStore {
	s := &fakeStore{jobs: make(map[string]*videojob.VideoJob)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeStore) get(id string) (*videojob.VideoJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, videojob.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*videojob.VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.get(id)
	if err != nil {
		return nil, err
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) Claim(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.get(id)
	if err != nil {
		return err
	}
	if job.Status != videojob.StatusPending {
		return videojob.ErrNotClaimable
	}
	job.Status = videojob.StatusProcessing
	return nil
}

func (s *fakeStore) SetExternalRunID(_ context.Context, id, runID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.get(id)
	if err != nil {
		return "", err
	}
	if job.ExternalRunID != nil {
		return *job.ExternalRunID, nil
	}
	job.ExternalRunID = &runID
	return runID, nil
}

func (s *fakeStore) setProcessingField(id string, set func(*videojob.VideoJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.get(id)
	if err != nil {
		return err
	}
	if job.Status != videojob.StatusProcessing {
		return videojob.ErrTerminalState
	}
	set(job)
	return nil
}

func (s *fakeStore) SetStorageKey(_ context.Context, id, key string) error {
	return s.setProcessingField(id, func(j *videojob.VideoJob) { j.StorageKey = &key })
}

func (s *fakeStore) SetTranscodedStorageKey(_ context.Context, id, key string) error {
	return s.setProcessingField(id, func(j *videojob.VideoJob) { j.TranscodedStorageKey = &key })
}

func (s *fakeStore) SetPlatformMediaID(_ context.Context, id, mediaID string) error {
	return s.setProcessingField(id, func(j *videojob.VideoJob) { j.PlatformMediaID = &mediaID })
}

func (s *fakeStore) SetTweetID(_ context.Context, id, tweetID string) error {
	return s.setProcessingField(id, func(j *videojob.VideoJob) { j.TweetID = &tweetID })
}

func (s *fakeStore) MarkCompleted(_ context.Context, id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.get(id)
	if err != nil {
		return err
	}
	if job.Status != videojob.StatusProcessing {
		return videojob.ErrTerminalState
	}
	now := time.Now()
	job.Status = videojob.StatusCompleted
	job.ErrorMessage = note
	job.CompletedAt = &now
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.get(id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return videojob.ErrTerminalState
	}
	job.Status = videojob.StatusFailed
	job.ErrorMessage = message
	job.RetryCount++
	return nil
}

func (s *fakeStore) MonthlyTranscodeCount(_ context.Context, _ string) (int, error) {
	return s.transcodeCount, nil
}

type fakeScraper struct {
	startCalls int
	runID      string
	startErr   error
	runStatus  string
	datasetID  string
	items      []scrape.Item
	itemsErr   error
}

func (f *fakeScraper) StartRun(_ context.Context, _, _ string) (string, error) {
	f.startCalls++
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.runID, nil
}

func (f *fakeScraper) GetRun(_ context.Context, _ string) (scrape.Run, error) {
	return scrape.Run{Status: f.runStatus, DatasetID: f.datasetID}, nil
}

func (f *fakeScraper) DatasetItems(_ context.Context, _ string) ([]scrape.Item, error) {
	return f.items, f.itemsErr
}

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type fakeMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{objects: make(map[string][]byte)}
}

func (f *fakeMediaStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeMediaStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (f *fakeMediaStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://store.test/signed/" + key, nil
}

type uploadResult struct {
	mediaID string
	err     error
}

type fakeUploader struct {
	results []uploadResult
	calls   int
}

func (f *fakeUploader) UploadMedia(_ context.Context, _ []byte, _ string) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.results) {
		return f.results[idx].mediaID, f.results[idx].err
	}
	return "media-default", nil
}

type fakeTranscoder struct {
	submitted []transcode.SubmitRequest
	err       error
}

func (f *fakeTranscoder) Submit(_ context.Context, req transcode.SubmitRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, req)
	return fmt.Sprintf("tc-%d", len(f.submitted)), nil
}

type fakePublisher struct {
	calls int
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, _ *publisher.Request) (*publisher.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &publisher.Result{TweetID: "tweet-1"}, nil
}

type delayedMessage struct {
	msg   PollMessage
	delay time.Duration
}

type fakeRequeuer struct {
	published []delayedMessage
	err       error
}

func (f *fakeRequeuer) PublishDelayed(_ context.Context, body []byte, _ string, delay time.Duration) error {
	if f.err != nil {
		return f.err
	}
	var msg PollMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}
	f.published = append(f.published, delayedMessage{msg: msg, delay: delay})
	return nil
}

// --- harness ---

type harness struct {
	store      *fakeStore
	scraper    *fakeScraper
	fetcher    *fakeFetcher
	media      *fakeMediaStore
	uploader   *fakeUploader
	transcoder *fakeTranscoder
	publisher  *fakePublisher
	requeuer   *fakeRequeuer
	pipeline   *Pipeline
}

func newHarness(t *testing.T, jobs ...*videojob.VideoJob) *harness {
	t.Helper()

	h := &harness{
		store:      newFakeStore(jobs...),
		scraper:    &fakeScraper{runID: "run-1", runStatus: scrape.RunSucceeded, datasetID: "ds-1"},
		fetcher:    &fakeFetcher{data: []byte("video-bytes")},
		media:      newFakeMediaStore(),
		uploader:   &fakeUploader{},
		transcoder: &fakeTranscoder{},
		publisher:  &fakePublisher{},
		requeuer:   &fakeRequeuer{},
	}

	h.pipeline = New(h.store, h.scraper, h.fetcher, h.media, h.uploader,
		h.transcoder, h.publisher, h.requeuer,
		Config{
			ScrapeQuality: "high",
			WebhookURL:    "https://app.test/webhooks/transcode",
			PresignTTL:    time.Hour,
			Limits: upload.Limits{
				MaxFileSizeMB:         512,
				MaxDurationSeconds:    6000,
				MonthlyTranscodeLimit: 10,
			},
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return h
}

func newTestJob() *videojob.VideoJob {
	return &videojob.VideoJob{
		ID:             "job-1",
		UserID:         "user-1",
		ThreadID:       "thread-1",
		VideoURL:       "https://www.tiktok.com/@user/video/12345",
		Platform:       platform.TikTok,
		Status:         videojob.StatusPending,
		PendingContent: `{"text":"look at this","account_id":"acct-1","action":"publish"}`,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

// --- tests ---

func TestPoll_DirectUploadSuccess(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.items = []scrape.Item{{MediaURL: "https://x/video.mp4", Duration: 12}}
	h.uploader.results = []uploadResult{{mediaID: "media-1"}}

	err := h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"})
	require.NoError(t, err)

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusCompleted, job.Status)
	require.NotNil(t, job.StorageKey)
	require.NotNil(t, job.PlatformMediaID)
	assert.Equal(t, "media-1", *job.PlatformMediaID)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, 1, h.publisher.calls)
	assert.Equal(t, 1, h.uploader.calls)
	assert.Empty(t, h.requeuer.published)
	assert.Empty(t, h.transcoder.submitted)
}

func TestPoll_StillRunningRequeues(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.runStatus = "RUNNING"

	err := h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1", Attempt: 3})
	require.NoError(t, err)

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusProcessing, job.Status)

	require.Len(t, h.requeuer.published, 1)
	assert.Equal(t, 4, h.requeuer.published[0].msg.Attempt)
	assert.Equal(t, NextDelay(3), h.requeuer.published[0].delay)
	assert.Equal(t, 0, h.uploader.calls)
}

func TestPoll_ReusesExternalRun(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.runStatus = "RUNNING"

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1", Attempt: 0}))
	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1", Attempt: 1}))

	assert.Equal(t, 1, h.scraper.startCalls, "second poll must reuse the persisted run id")

	job, _ := h.store.GetByID(context.Background(), "job-1")
	require.NotNil(t, job.ExternalRunID)
	assert.Equal(t, "run-1", *job.ExternalRunID)
}

func TestPoll_AttemptsExhausted(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.runStatus = "RUNNING"

	err := h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1", Attempt: MaxPollAttempts})
	require.NoError(t, err)

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "timed out")
	assert.Nil(t, job.PlatformMediaID)
	assert.Equal(t, 1, job.RetryCount)
	assert.Empty(t, h.requeuer.published)
}

func TestPoll_RunFailed(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.runStatus = scrape.RunFailed

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "FAILED")
}

func TestPoll_NoMediaURLInResults(t *testing.T) {
	tests := []struct {
		name  string
		items []scrape.Item
	}{
		{name: "empty dataset", items: nil},
		{name: "item without url fields", items: []scrape.Item{{Title: "a video"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newTestJob())
			h.scraper.items = tt.items

			require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

			job, _ := h.store.GetByID(context.Background(), "job-1")
			assert.Equal(t, videojob.StatusFailed, job.Status)
			assert.Equal(t, 0, h.uploader.calls)
		})
	}
}

func TestPoll_TerminalJobIsNoOp(t *testing.T) {
	job := newTestJob()
	job.Status = videojob.StatusCompleted
	h := newHarness(t, job)

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	assert.Equal(t, 0, h.scraper.startCalls)
	assert.Equal(t, 0, h.uploader.calls)
	assert.Equal(t, 0, h.publisher.calls)
}

func TestPoll_ScreeningRejection(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.items = []scrape.Item{{MediaURL: "https://x/video.mp4"}}
	h.fetcher.data = bytes.Repeat([]byte("x"), 2*1024*1024)
	h.pipeline.cfg.Limits.MaxFileSizeMB = 1

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "file size")
	assert.Equal(t, 0, h.uploader.calls, "screening rejections never reach the upload API")
	assert.Empty(t, h.transcoder.submitted)
}

func TestPoll_QuotaExhaustedBlocksTranscoding(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.items = []scrape.Item{{MediaURL: "https://x/video.mp4"}}
	h.store.transcodeCount = 10

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "quota")
	assert.Empty(t, h.transcoder.submitted)
}

func TestPoll_NonFormatUploadFailureIsFatal(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.items = []scrape.Item{{MediaURL: "https://x/video.mp4"}}
	h.uploader.results = []uploadResult{{err: &upload.APIError{StatusCode: 429, Message: "rate limit exceeded"}}}

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusFailed, job.Status)
	assert.Empty(t, h.transcoder.submitted)
	assert.Equal(t, 0, h.publisher.calls)
}

func TestPoll_UnsupportedFormatGoesToTranscodingThenWebhookCompletes(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.items = []scrape.Item{{MediaURL: "https://x/video.webm", Duration: 12}}
	h.uploader.results = []uploadResult{
		{err: &upload.APIError{StatusCode: 400, Message: "unsupported format: vp9"}},
		{mediaID: "media-2"},
	}

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusProcessing, job.Status, "job suspends awaiting the webhook")
	assert.Nil(t, job.PlatformMediaID)
	require.Len(t, h.transcoder.submitted, 1)
	assert.Equal(t, "job-1", h.transcoder.submitted[0].VideoJobID)
	assert.Equal(t, "https://app.test/webhooks/transcode", h.transcoder.submitted[0].WebhookURL)
	assert.Equal(t, 0, h.publisher.calls)

	// Simulate the transcoder writing its output, then the callback.
	outputKey := h.transcoder.submitted[0].OutputKey
	h.media.objects[outputKey] = []byte("transcoded-bytes")

	payload := &transcode.WebhookPayload{
		ID:      "tc-1",
		Status:  transcode.WebhookCompleted,
		Outputs: []transcode.WebhookOutput{{Path: outputKey}},
	}
	payload.Input.Metadata.VideoJobID = "job-1"

	require.NoError(t, h.pipeline.HandleTranscodeWebhook(context.Background(), payload))

	job, _ = h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusCompleted, job.Status)
	require.NotNil(t, job.TranscodedStorageKey)
	assert.Equal(t, outputKey, *job.TranscodedStorageKey)
	require.NotNil(t, job.PlatformMediaID)
	assert.Equal(t, "media-2", *job.PlatformMediaID)
	assert.Equal(t, 1, h.publisher.calls)

	// Duplicate webhook delivery must not re-upload or double-publish.
	require.NoError(t, h.pipeline.HandleTranscodeWebhook(context.Background(), payload))
	assert.Equal(t, 1, h.publisher.calls)
	assert.Equal(t, 2, h.uploader.calls)
}

func TestHandleTranscodeWebhook_MissingJobID(t *testing.T) {
	h := newHarness(t, newTestJob())

	payload := &transcode.WebhookPayload{Status: transcode.WebhookCompleted}
	err := h.pipeline.HandleTranscodeWebhook(context.Background(), payload)
	assert.ErrorIs(t, err, ErrMissingJobID)
}

func TestHandleTranscodeWebhook_ProgressIsNoOp(t *testing.T) {
	job := newTestJob()
	job.Status = videojob.StatusProcessing
	h := newHarness(t, job)

	payload := &transcode.WebhookPayload{Status: "transcoding", Progress: 42}
	payload.Input.Metadata.VideoJobID = "job-1"

	require.NoError(t, h.pipeline.HandleTranscodeWebhook(context.Background(), payload))

	got, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusProcessing, got.Status)
	assert.Equal(t, 0, h.uploader.calls)
}

func TestHandleTranscodeWebhook_CompletedWithoutOutputsFails(t *testing.T) {
	job := newTestJob()
	job.Status = videojob.StatusProcessing
	h := newHarness(t, job)

	payload := &transcode.WebhookPayload{Status: transcode.WebhookCompleted}
	payload.Input.Metadata.VideoJobID = "job-1"

	require.NoError(t, h.pipeline.HandleTranscodeWebhook(context.Background(), payload))

	got, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "completed without outputs")
	assert.Equal(t, 0, h.uploader.calls)
	assert.Equal(t, 0, h.publisher.calls)
}

func TestHandleTranscodeWebhook_Failure(t *testing.T) {
	job := newTestJob()
	job.Status = videojob.StatusProcessing
	h := newHarness(t, job)

	payload := &transcode.WebhookPayload{
		Status: transcode.WebhookError,
		Errors: []string{"input corrupt", "no audio stream"},
	}
	payload.Input.Metadata.VideoJobID = "job-1"

	require.NoError(t, h.pipeline.HandleTranscodeWebhook(context.Background(), payload))

	got, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "input corrupt")
	assert.Contains(t, got.ErrorMessage, "no audio stream")
}

func TestFinalize_PublishFailureKeepsJobCompleted(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.items = []scrape.Item{{MediaURL: "https://x/video.mp4"}}
	h.publisher.err = fmt.Errorf("publication service unavailable")

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	job, _ := h.store.GetByID(context.Background(), "job-1")
	assert.Equal(t, videojob.StatusCompleted, job.Status,
		"media work is not thrown away over a publish glitch")
	assert.Contains(t, job.ErrorMessage, "publish failed")
	require.NotNil(t, job.PlatformMediaID)
}

func TestPoll_RedeliveryAfterCompletionDoesNothing(t *testing.T) {
	h := newHarness(t, newTestJob())
	h.scraper.items = []scrape.Item{{MediaURL: "https://x/video.mp4"}}

	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))
	require.NoError(t, h.pipeline.Poll(context.Background(), PollMessage{JobID: "job-1"}))

	assert.Equal(t, 1, h.scraper.startCalls)
	assert.Equal(t, 1, h.uploader.calls)
	assert.Equal(t, 1, h.publisher.calls)
}
