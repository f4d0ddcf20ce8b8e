package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/cuongbtq/gigflow/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Terms are the bidder's proposed terms
type Terms struct {
	Message string
	Price   decimal.Decimal
}

// BidWithJob pairs a bid with its parent job for the bidder's own listings
type BidWithJob struct {
	Bid domain.Bid
	Job domain.Job
}

// SubmitBid creates a pending bid on an open job
func (s *Service) SubmitBid(ctx context.Context, jobID, bidderID string, terms Terms) (*domain.Bid, error) {
	message := strings.TrimSpace(terms.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: bid message is required", domain.ErrInvalidArgument)
	}
	if err := checkAmount("price", terms.Price); err != nil {
		return nil, err
	}

	// Held so a bid cannot slip in between a hire's reads and its commit.
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, classify("find job", err)
	}
	if job.Status != domain.JobStatusOpen {
		return nil, fmt.Errorf("%w: job is no longer accepting bids", domain.ErrInvalidState)
	}
	if job.OwnerID == bidderID {
		return nil, fmt.Errorf("%w: cannot bid on your own job", domain.ErrForbidden)
	}

	now := s.now()
	bid := &domain.Bid{
		BidID:     uuid.New().String(),
		JobID:     jobID,
		BidderID:  bidderID,
		Message:   message,
		Price:     terms.Price,
		Status:    domain.BidStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateBid(ctx, bid); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Info("Duplicate bid rejected",
				slog.String("job_id", jobID),
				slog.String("bidder_id", bidderID),
			)
		} else {
			s.logger.Error("Failed to create bid",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return nil, classify("create bid", err)
	}

	s.logger.Info("Bid submitted",
		slog.String("job_id", jobID),
		slog.String("bid_id", bid.BidID),
		slog.String("bidder_id", bidderID),
	)

	return bid, nil
}

// ListBids returns every bid on a job. Only the owner may see them.
func (s *Service) ListBids(ctx context.Context, jobID, requesterID string) ([]domain.Bid, error) {
	job, err := s.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, classify("find job", err)
	}
	if job.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: only the job owner can view bids", domain.ErrForbidden)
	}

	bids, err := s.store.ListBids(ctx, storage.BidFilter{JobID: jobID})
	if err != nil {
		return nil, classify("list bids", err)
	}
	return bids, nil
}

// ListAssigned returns the bids on which bidderID was hired
func (s *Service) ListAssigned(ctx context.Context, bidderID string) ([]BidWithJob, error) {
	bids, err := s.store.ListBids(ctx, storage.BidFilter{BidderID: bidderID, Status: domain.BidStatusHired})
	if err != nil {
		return nil, classify("list assigned bids", err)
	}
	return s.withJobs(ctx, bids, false)
}

// ListApplications returns the bidder's bids that were not hired
func (s *Service) ListApplications(ctx context.Context, bidderID string) ([]BidWithJob, error) {
	bids, err := s.store.ListBids(ctx, storage.BidFilter{BidderID: bidderID})
	if err != nil {
		return nil, classify("list applications", err)
	}
	return s.withJobs(ctx, bids, true)
}

func (s *Service) withJobs(ctx context.Context, bids []domain.Bid, skipHired bool) ([]BidWithJob, error) {
	result := make([]BidWithJob, 0, len(bids))
	for _, bid := range bids {
		if skipHired && bid.Status == domain.BidStatusHired {
			continue
		}
		job, err := s.store.FindJob(ctx, bid.JobID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, classify("find job", err)
		}
		result = append(result, BidWithJob{Bid: bid, Job: *job})
	}
	return result, nil
}
