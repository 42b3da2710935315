package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/postpilot/backend/internal/api/dto"
	"github.com/postpilot/backend/internal/videojob"
)

// GetVideoJob handles GET /api/v1/video-jobs/:job_id
// Retrieves the current state of a video job so the UI can poll progress.
func (h *VideoJobHandler) GetVideoJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, videojob.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Video job not found",
			})
			return
		}
		h.logger.Error("Failed to get video job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get video job",
		})
		return
	}

	c.JSON(http.StatusOK, toVideoJobDTO(job))
}

// ListVideoJobs handles GET /api/v1/video-jobs
// Lists a user's video jobs newest first with cursor pagination.
func (h *VideoJobHandler) ListVideoJobs(c *gin.Context) {
	var req dto.ListVideoJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}

	if req.Status != "" && !videojob.Status(req.Status).Known() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status filter",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := videojob.Filter{
		Status:   videojob.Status(req.Status),
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.store.ListByUser(c.Request.Context(), req.UserID, filter)
	if err != nil {
		h.logger.Error("Failed to list video jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list video jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.VideoJobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toVideoJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&videojob.Cursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListVideoJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

func toVideoJobDTO(job *videojob.VideoJob) dto.VideoJobDTO {
	d := dto.VideoJobDTO{
		JobID:        job.ID,
		UserID:       job.UserID,
		ThreadID:     job.ThreadID,
		VideoURL:     job.VideoURL,
		Platform:     job.Platform.String(),
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}

	if job.TweetID != nil {
		d.TweetID = *job.TweetID
	}
	if job.StorageKey != nil {
		d.StorageKey = *job.StorageKey
	}
	if job.PlatformMediaID != nil {
		d.PlatformMediaID = *job.PlatformMediaID
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	return d
}
