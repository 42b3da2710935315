package videojob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store handles all database operations for video jobs. Every mutation is a
// targeted, status-gated UPDATE keyed by job id; there is no locking. A
// stale trigger that lost a race simply matches zero rows.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	id, user_id, thread_id, tweet_id, video_url, platform, status,
	external_run_id, storage_key, transcoded_storage_key, platform_media_id,
	error_message, retry_count, pending_content,
	created_at, updated_at, completed_at
`

// Create inserts a new job in pending status.
func (s *Store) Create(ctx context.Context, job *VideoJob) error {
	query := `
		INSERT INTO video_jobs (
			id, user_id, thread_id, tweet_id, video_url, platform, status,
			pending_content, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.ThreadID,
		job.TweetID,
		job.VideoURL,
		job.Platform,
		StatusPending,
		job.PendingContent,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create video job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its id.
func (s *Store) GetByID(ctx context.Context, jobID string) (*VideoJob, error) {
	query := `SELECT ` + jobColumns + ` FROM video_jobs WHERE id = $1`

	var job VideoJob
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get video job: %w", err)
	}

	return &job, nil
}

// Claim moves a job from pending to processing. Returns ErrNotClaimable when
// the job is not pending, which callers treat by re-reading current status.
func (s *Store) Claim(ctx context.Context, jobID string) error {
	query := `
		UPDATE video_jobs
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, StatusProcessing, jobID, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to claim video job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotClaimable
	}

	s.logger.Info("Video job claimed for processing",
		slog.String("job_id", jobID),
	)

	return nil
}

// SetExternalRunID records the external download run id, at most once. If a
// run id is already persisted the stored value wins and is returned, so a
// duplicate delivery never double-submits a run.
func (s *Store) SetExternalRunID(ctx context.Context, jobID, runID string) (string, error) {
	query := `
		UPDATE video_jobs
		SET external_run_id = $1, updated_at = NOW()
		WHERE id = $2 AND external_run_id IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, runID, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to set external run id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return runID, nil
	}

	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.ExternalRunID == nil {
		return "", fmt.Errorf("external run id not persisted for job %s", jobID)
	}

	s.logger.Warn("External run already recorded, reusing",
		slog.String("job_id", jobID),
		slog.String("run_id", *job.ExternalRunID),
	)

	return *job.ExternalRunID, nil
}

// SetStorageKey records where the downloaded media landed. Only valid while
// the job is processing; the key is persisted strictly after the object
// store write succeeded.
func (s *Store) SetStorageKey(ctx context.Context, jobID, key string) error {
	return s.setProcessingField(ctx, jobID, "storage_key", key)
}

// SetTranscodedStorageKey records the transcoder output location.
func (s *Store) SetTranscodedStorageKey(ctx context.Context, jobID, key string) error {
	return s.setProcessingField(ctx, jobID, "transcoded_storage_key", key)
}

// SetPlatformMediaID records the media id returned by the social platform
// upload API after a verified successful upload.
func (s *Store) SetPlatformMediaID(ctx context.Context, jobID, mediaID string) error {
	return s.setProcessingField(ctx, jobID, "platform_media_id", mediaID)
}

// SetTweetID links the job to the materialized post row.
func (s *Store) SetTweetID(ctx context.Context, jobID, tweetID string) error {
	return s.setProcessingField(ctx, jobID, "tweet_id", tweetID)
}

func (s *Store) setProcessingField(ctx context.Context, jobID, column, value string) error {
	query := fmt.Sprintf(`
		UPDATE video_jobs
		SET %s = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, column)

	result, err := s.db.ExecContext(ctx, query, value, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTerminalState
	}

	return nil
}

// MarkCompleted transitions a processing job to completed and stamps
// completed_at. A non-empty note records a publish-step failure that did not
// revert the job (the media work itself succeeded).
func (s *Store) MarkCompleted(ctx context.Context, jobID, note string) error {
	query := `
		UPDATE video_jobs
		SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, StatusCompleted, note, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark video job completed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTerminalState
	}

	s.logger.Info("Video job completed",
		slog.String("job_id", jobID),
	)

	return nil
}

// MarkFailed transitions a pending or processing job to failed, records the
// error message and increments the retry counter.
func (s *Store) MarkFailed(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE video_jobs
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)
	`

	result, err := s.db.ExecContext(ctx, query, StatusFailed, message, jobID, StatusPending, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark video job failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTerminalState
	}

	s.logger.Warn("Video job failed",
		slog.String("job_id", jobID),
		slog.String("error", message),
	)

	return nil
}

// MonthlyTranscodeCount counts the user's jobs that went through transcoding
// in the current calendar month. Used by the pre-upload quota screening.
func (s *Store) MonthlyTranscodeCount(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM video_jobs
		WHERE user_id = $1
		  AND transcoded_storage_key IS NOT NULL
		  AND created_at >= date_trunc('month', NOW())
	`

	var count int
	if err := s.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count monthly transcodes: %w", err)
	}

	return count, nil
}

// Filter narrows ListByUser results.
type Filter struct {
	Status   Status
	PageSize int
	Cursor   *Cursor
}

// Cursor is a (created_at, id) keyset pagination position.
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListByUser returns the user's jobs newest first with keyset pagination.
// One extra row beyond PageSize is fetched so the caller can detect more.
func (s *Store) ListByUser(ctx context.Context, userID string, filter Filter) ([]VideoJob, error) {
	query := `SELECT ` + jobColumns + ` FROM video_jobs WHERE user_id = $1`
	args := []interface{}{userID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []VideoJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list video jobs: %w", err)
	}

	return jobs, nil
}
