package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigflow/internal/api/dto"
	"github.com/cuongbtq/gigflow/internal/marketplace"
	"github.com/cuongbtq/gigflow/internal/storage"
	"github.com/gin-gonic/gin"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger      *slog.Logger
	marketplace *marketplace.Service
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:      deps.Logger,
		marketplace: deps.Marketplace,
	}
}

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "Invalid request body")
		return
	}

	job, err := h.marketplace.PostJob(c.Request.Context(), currentUser(c), marketplace.NewJob{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := pathID(c, h.logger, "job_id")
	if !ok {
		return
	}

	job, err := h.marketplace.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists open jobs, newest first, with title search and keyset pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Debug("Invalid query parameters", slog.String("error", err.Error()))
		badRequest(c, "Invalid query parameters")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = marketplace.DefaultPageSize
	}
	if req.PageSize > marketplace.MaxPageSize {
		req.PageSize = marketplace.MaxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Debug("Invalid cursor", slog.String("error", err.Error()))
		badRequest(c, "Invalid cursor")
		return
	}

	jobs, err := h.marketplace.ListOpenJobs(c.Request.Context(), storage.JobFilter{
		Search:   req.Search,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.NewJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// ListMyJobs handles GET /api/v1/jobs/mine
func (h *JobHandler) ListMyJobs(c *gin.Context) {
	posted, err := h.marketplace.ListPostedJobs(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	jobs := make([]dto.PostedJobDTO, len(posted))
	for i := range posted {
		jobs[i] = dto.PostedJobDTO{JobDTO: dto.NewJobDTO(&posted[i].Job)}
		if posted[i].HiredBid != nil {
			hired := dto.NewBidDTO(posted[i].HiredBid)
			jobs[i].HiredBid = &hired
		}
	}

	c.JSON(http.StatusOK, dto.ListPostedJobsResponse{Jobs: jobs})
}

// CompleteJob handles POST /api/v1/jobs/:job_id/complete
func (h *JobHandler) CompleteJob(c *gin.Context) {
	jobID, ok := pathID(c, h.logger, "job_id")
	if !ok {
		return
	}

	job, err := h.marketplace.Complete(c.Request.Context(), jobID, currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}
