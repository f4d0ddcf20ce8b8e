package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigflow/internal/api/dto"
	"github.com/cuongbtq/gigflow/internal/marketplace"
	"github.com/gin-gonic/gin"
)

// BidHandler handles bid and hire HTTP requests
type BidHandler struct {
	logger      *slog.Logger
	marketplace *marketplace.Service
}

// NewBidHandler creates a new BidHandler instance
func NewBidHandler(deps *Dependencies) *BidHandler {
	return &BidHandler{
		logger:      deps.Logger,
		marketplace: deps.Marketplace,
	}
}

// SubmitBid handles POST /api/v1/jobs/:job_id/bids
func (h *BidHandler) SubmitBid(c *gin.Context) {
	jobID, ok := pathID(c, h.logger, "job_id")
	if !ok {
		return
	}

	var req dto.SubmitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "Invalid request body")
		return
	}

	bid, err := h.marketplace.SubmitBid(c.Request.Context(), jobID, currentUser(c), marketplace.Terms{
		Message: req.Message,
		Price:   req.Price,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewBidDTO(bid))
}

// ListBids handles GET /api/v1/jobs/:job_id/bids
func (h *BidHandler) ListBids(c *gin.Context) {
	jobID, ok := pathID(c, h.logger, "job_id")
	if !ok {
		return
	}

	bids, err := h.marketplace.ListBids(c.Request.Context(), jobID, currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]dto.BidDTO, len(bids))
	for i := range bids {
		response[i] = dto.NewBidDTO(&bids[i])
	}

	c.JSON(http.StatusOK, dto.ListBidsResponse{Bids: response})
}

// Hire handles POST /api/v1/jobs/:job_id/bids/:bid_id/hire
func (h *BidHandler) Hire(c *gin.Context) {
	jobID, ok := pathID(c, h.logger, "job_id")
	if !ok {
		return
	}
	bidID, ok := pathID(c, h.logger, "bid_id")
	if !ok {
		return
	}

	bid, err := h.marketplace.Hire(c.Request.Context(), jobID, bidID, currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewBidDTO(bid))
}

// ListAssigned handles GET /api/v1/bids/assigned
func (h *BidHandler) ListAssigned(c *gin.Context) {
	bids, err := h.marketplace.ListAssigned(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListBidsWithJobsResponse{Bids: withJobs(bids)})
}

// ListApplications handles GET /api/v1/bids/applications
func (h *BidHandler) ListApplications(c *gin.Context) {
	bids, err := h.marketplace.ListApplications(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListBidsWithJobsResponse{Bids: withJobs(bids)})
}

func withJobs(bids []marketplace.BidWithJob) []dto.BidWithJobDTO {
	response := make([]dto.BidWithJobDTO, len(bids))
	for i := range bids {
		response[i] = dto.BidWithJobDTO{
			Bid: dto.NewBidDTO(&bids[i].Bid),
			Job: dto.NewJobDTO(&bids[i].Job),
		}
	}
	return response
}
