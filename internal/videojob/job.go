package videojob

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/postpilot/backend/internal/platform"
)

// Status is the lifecycle state of a VideoJob. Jobs move forward only:
// pending -> processing -> completed | failed. The terminal states are
// immutable; every handler checks the current status before acting so that
// duplicate or out-of-order queue deliveries degrade to no-ops.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further mutation of the job is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Known reports whether s is one of the defined lifecycle states.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Post actions carried in PendingContent.
const (
	ActionPublishNow = "publish"
	ActionEnqueue    = "enqueue"
	ActionSchedule   = "schedule"
)

// PendingContent is the complete serialized post payload captured at job
// creation, so the finalizer can materialize and publish the post without
// the original request context.
type PendingContent struct {
	Text        string     `json:"text"`
	MediaIDs    []string   `json:"media_ids,omitempty"`
	AccountID   string     `json:"account_id"`
	Action      string     `json:"action"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Validate checks the action and its schedule requirement.
func (p *PendingContent) Validate() error {
	switch p.Action {
	case ActionPublishNow, ActionEnqueue:
		return nil
	case ActionSchedule:
		if p.ScheduledAt == nil {
			return fmt.Errorf("scheduled action requires scheduled_at")
		}
		return nil
	default:
		return fmt.Errorf("unknown post action: %q", p.Action)
	}
}

// VideoJob is the durable record tracking one video's acquisition through
// publication. It is the single source of truth for the pipeline; the
// nullable columns fill in as stages complete.
type VideoJob struct {
	ID                   string            `db:"id"`
	UserID               string            `db:"user_id"`
	ThreadID             string            `db:"thread_id"`
	TweetID              *string           `db:"tweet_id"`
	VideoURL             string            `db:"video_url"`
	Platform             platform.Platform `db:"platform"`
	Status               Status            `db:"status"`
	ExternalRunID        *string           `db:"external_run_id"`
	StorageKey           *string           `db:"storage_key"`
	TranscodedStorageKey *string           `db:"transcoded_storage_key"`
	PlatformMediaID      *string           `db:"platform_media_id"`
	ErrorMessage         string            `db:"error_message"`
	RetryCount           int               `db:"retry_count"`
	PendingContent       string            `db:"pending_content"`
	CreatedAt            time.Time         `db:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at"`
	CompletedAt          *time.Time        `db:"completed_at"`
}

// Content deserializes the captured post payload.
func (j *VideoJob) Content() (*PendingContent, error) {
	var content PendingContent
	if err := json.Unmarshal([]byte(j.PendingContent), &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPendingContent, err)
	}
	return &content, nil
}
