package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/postpilot/backend/internal/api/dto"
	"github.com/postpilot/backend/internal/pipeline"
	"github.com/postpilot/backend/internal/platform"
	"github.com/postpilot/backend/internal/publisher"
	"github.com/postpilot/backend/internal/videojob"
)

// CreatePost handles POST /api/v1/posts
// Scans the post text for video URLs. Without one the post goes straight to
// the publication service; with one a video job is created and the post is
// deferred until the video has been acquired and uploaded.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	content := videojob.PendingContent{
		Text:        req.Text,
		MediaIDs:    req.MediaIDs,
		AccountID:   req.AccountID,
		Action:      req.Action,
		ScheduledAt: req.ScheduledAt,
	}
	if err := content.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	videoURLs := platform.ExtractVideoURLs(req.Text)
	if len(videoURLs) == 0 {
		h.publishDirectly(c, &req)
		return
	}

	// Only the first video URL is acquired; the rest of the text is kept
	// verbatim in the pending content.
	videoURL := videoURLs[0]

	contentJSON, err := json.Marshal(content)
	if err != nil {
		h.logger.Error("Failed to serialize pending content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create video job",
		})
		return
	}

	now := time.Now()
	job := videojob.VideoJob{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		ThreadID:       req.ThreadID,
		VideoURL:       videoURL.URL,
		Platform:       videoURL.Platform,
		Status:         videojob.StatusPending,
		PendingContent: string(contentJSON),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.Create(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create video job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create video job",
		})
		return
	}

	msg, err := json.Marshal(pipeline.PollMessage{JobID: job.ID, Attempt: 0})
	if err != nil {
		h.logger.Error("Failed to marshal poll message", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue video job",
		})
		return
	}

	if err := h.queue.PublishWithRetry(c.Request.Context(), msg, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue video job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":        "Failed to enqueue video job",
			"video_job_id": job.ID,
		})
		return
	}

	h.logger.Info("Video job created",
		slog.String("job_id", job.ID),
		slog.String("user_id", job.UserID),
		slog.String("platform", job.Platform.String()),
	)

	c.JSON(http.StatusAccepted, dto.CreatePostResponse{
		Status:     "processing_video",
		VideoJobID: job.ID,
		Platform:   job.Platform.String(),
	})
}

func (h *PostHandler) publishDirectly(c *gin.Context, req *dto.CreatePostRequest) {
	result, err := h.publisher.Publish(c.Request.Context(), &publisher.Request{
		UserID:      req.UserID,
		ThreadID:    req.ThreadID,
		AccountID:   req.AccountID,
		Text:        req.Text,
		MediaIDs:    req.MediaIDs,
		Action:      req.Action,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		h.logger.Error("Failed to publish post", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to publish post",
		})
		return
	}

	c.JSON(http.StatusOK, dto.CreatePostResponse{
		Status:  "published",
		TweetID: result.TweetID,
	})
}
