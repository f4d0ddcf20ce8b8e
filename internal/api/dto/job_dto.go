package dto

import (
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/shopspring/decimal"
)

type CreateJobRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Budget      decimal.Decimal `json:"budget"`
}

type ListJobsRequest struct {
	Search   string `form:"search"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID       string          `json:"job_id"`
	OwnerID     string          `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Budget      decimal.Decimal `json:"budget"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type PostedJobDTO struct {
	JobDTO
	HiredBid *BidDTO `json:"hired_bid,omitempty"`
}

type ListPostedJobsResponse struct {
	Jobs []PostedJobDTO `json:"jobs"`
}

func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		JobID:       job.JobID,
		OwnerID:     job.OwnerID,
		Title:       job.Title,
		Description: job.Description,
		Budget:      job.Budget,
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
}
