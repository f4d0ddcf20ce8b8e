package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/gigflow/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Config holds what the router needs besides the handler dependencies
type Config struct {
	Deps           *handler.Dependencies
	Auth           *TokenAuth
	HealthCheck    func(ctx context.Context) error
	AllowedOrigins []string
	ServiceName    string
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(cfg *Config) *gin.Engine {
	deps := cfg.Deps
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler(cfg, deps.Logger))

	jobHandler := handler.NewJobHandler(deps)
	bidHandler := handler.NewBidHandler(deps)
	messageHandler := handler.NewMessageHandler(deps)

	authenticated := AuthMiddleware(cfg.Auth, deps.Logger)

	r.GET("/ws", authenticated, messageHandler.ServeWS)

	v1 := r.Group("/api/v1")

	// The open-job board is browsable without signing in.
	v1.GET("/jobs", jobHandler.ListJobs)

	private := v1.Group("", authenticated)
	{
		jobs := private.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("/mine", jobHandler.ListMyJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/complete", jobHandler.CompleteJob)

			jobs.POST("/:job_id/bids", bidHandler.SubmitBid)
			jobs.GET("/:job_id/bids", bidHandler.ListBids)
			jobs.POST("/:job_id/bids/:bid_id/hire", bidHandler.Hire)

			jobs.GET("/:job_id/messages", messageHandler.ListMessages)
			jobs.POST("/:job_id/messages", messageHandler.SendMessage)
		}

		bids := private.Group("/bids")
		{
			bids.GET("/assigned", bidHandler.ListAssigned)
			bids.GET("/applications", bidHandler.ListApplications)
		}
	}

	return r
}

func healthHandler(cfg *Config, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := cfg.HealthCheck(ctx); err != nil {
				logger.Warn("Health check failed", slog.String("error", err.Error()))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": cfg.ServiceName,
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.ServiceName,
		})
	}
}
