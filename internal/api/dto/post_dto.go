package dto

import "time"

// CreatePostRequest is the post submission payload. Text is scanned for
// video URLs; when one is found the post is deferred behind a video job.
type CreatePostRequest struct {
	UserID      string     `json:"user_id" binding:"required"`
	ThreadID    string     `json:"thread_id" binding:"required"`
	AccountID   string     `json:"account_id" binding:"required"`
	Text        string     `json:"text" binding:"required"`
	MediaIDs    []string   `json:"media_ids"`
	Action      string     `json:"action" binding:"required"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// CreatePostResponse is returned for both outcomes of a submission: an
// immediate publish (TweetID set) or a deferred one (VideoJobID set).
type CreatePostResponse struct {
	Status     string `json:"status"`
	TweetID    string `json:"tweet_id,omitempty"`
	VideoJobID string `json:"video_job_id,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

type ListVideoJobsRequest struct {
	UserID   string `form:"user_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListVideoJobsResponse struct {
	Jobs       []VideoJobDTO `json:"jobs"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type VideoJobDTO struct {
	JobID           string `json:"job_id"`
	UserID          string `json:"user_id"`
	ThreadID        string `json:"thread_id"`
	TweetID         string `json:"tweet_id,omitempty"`
	VideoURL        string `json:"video_url"`
	Platform        string `json:"platform"`
	Status          string `json:"status"`
	StorageKey      string `json:"storage_key,omitempty"`
	PlatformMediaID string `json:"platform_media_id,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	RetryCount      int    `json:"retry_count"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}
