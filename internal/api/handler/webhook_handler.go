package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postpilot/backend/internal/pipeline"
	"github.com/postpilot/backend/internal/transcode"
	"github.com/postpilot/backend/internal/videojob"
)

// TranscodeWebhook handles POST /api/v1/webhooks/transcode
// Receives completion, progress and error callbacks from the transcoding
// service. Providers redeliver on non-2xx, so everything the pipeline treats
// as handled is acknowledged.
func (h *WebhookHandler) TranscodeWebhook(c *gin.Context) {
	var payload transcode.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error("Invalid webhook payload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid webhook payload",
		})
		return
	}

	err := h.pipeline.HandleTranscodeWebhook(c.Request.Context(), &payload)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	switch {
	case errors.Is(err, pipeline.ErrMissingJobID):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Webhook payload has no video job id",
		})
	case errors.Is(err, videojob.ErrJobNotFound):
		// Unknown jobs are not retried by the provider.
		h.logger.Warn("Webhook for unknown video job",
			slog.String("job_id", payload.JobID()),
		)
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Video job not found",
		})
	default:
		h.logger.Error("Webhook processing failed",
			slog.String("job_id", payload.JobID()),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Webhook processing failed",
		})
	}
}
