package dto

import (
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/shopspring/decimal"
)

type SubmitBidRequest struct {
	Message string          `json:"message" binding:"required"`
	Price   decimal.Decimal `json:"price"`
}

type BidDTO struct {
	BidID     string          `json:"bid_id"`
	JobID     string          `json:"job_id"`
	BidderID  string          `json:"bidder_id"`
	Message   string          `json:"message"`
	Price     decimal.Decimal `json:"price"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type ListBidsResponse struct {
	Bids []BidDTO `json:"bids"`
}

type BidWithJobDTO struct {
	Bid BidDTO `json:"bid"`
	Job JobDTO `json:"job"`
}

type ListBidsWithJobsResponse struct {
	Bids []BidWithJobDTO `json:"bids"`
}

func NewBidDTO(bid *domain.Bid) BidDTO {
	return BidDTO{
		BidID:     bid.BidID,
		JobID:     bid.JobID,
		BidderID:  bid.BidderID,
		Message:   bid.Message,
		Price:     bid.Price,
		Status:    string(bid.Status),
		CreatedAt: bid.CreatedAt.Format(time.RFC3339),
		UpdatedAt: bid.UpdatedAt.Format(time.RFC3339),
	}
}
