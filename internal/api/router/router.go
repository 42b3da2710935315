package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postpilot/backend/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "video-api-service",
		})
	})

	postHandler := handler.NewPostHandler(deps)
	videoJobHandler := handler.NewVideoJobHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		posts := v1.Group("/posts")
		{
			// POST /api/v1/posts - Submit a post, deferring it behind a
			// video job when the text carries a video URL
			posts.POST("", postHandler.CreatePost)
		}

		jobs := v1.Group("/video-jobs")
		{
			// GET /api/v1/video-jobs - List a user's video jobs
			jobs.GET("", videoJobHandler.ListVideoJobs)

			// GET /api/v1/video-jobs/:job_id - Get video job state
			jobs.GET("/:job_id", videoJobHandler.GetVideoJob)
		}

		webhooks := v1.Group("/webhooks")
		{
			// POST /api/v1/webhooks/transcode - Transcoding service callback
			webhooks.POST("/transcode", webhookHandler.TranscodeWebhook)
		}
	}

	return r
}
