package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/cuongbtq/gigflow/internal/storage"
)

// Hire accepts bidID for jobID, rejects every other pending bid and assigns
// the job, all in one unit. Of two racing hires on the same job exactly one
// commits; the other fails with domain.ErrInvalidState.
func (s *Service) Hire(ctx context.Context, jobID, bidID, actingUserID string) (*domain.Bid, error) {
	var (
		job      *domain.Job
		hired    *domain.Bid
		rejected int64
	)

	unlock := s.locks.Lock(jobID)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		// Job row first so concurrent units on this job lock in the same order.
		current, err := tx.FindJob(ctx, jobID)
		if err != nil {
			return err
		}

		bid, err := tx.FindBid(ctx, bidID)
		if err != nil {
			return err
		}
		if bid.JobID != jobID {
			return fmt.Errorf("%w: bid %s does not belong to job %s", domain.ErrNotFound, bidID, jobID)
		}

		if current.OwnerID != actingUserID {
			return fmt.Errorf("%w: only the job owner can hire", domain.ErrForbidden)
		}
		if !current.Status.CanTransitionTo(domain.JobStatusAssigned) {
			return fmt.Errorf("%w: job has already been assigned", domain.ErrInvalidState)
		}
		if bid.Status.Terminal() {
			return fmt.Errorf("%w: bid is %s", domain.ErrInvalidState, bid.Status)
		}

		job, err = tx.UpdateJobStatus(ctx, jobID, domain.JobStatusOpen, domain.JobStatusAssigned)
		if err != nil {
			return err
		}

		if err := tx.UpdateBidStatus(ctx, bidID, domain.BidStatusPending, domain.BidStatusHired); err != nil {
			return err
		}

		rejected, err = tx.UpdateManyBids(ctx, storage.BidFilter{
			JobID:        jobID,
			Status:       domain.BidStatusPending,
			ExcludeBidID: bidID,
		}, domain.BidStatusRejected)
		if err != nil {
			return err
		}

		bid.Status = domain.BidStatusHired
		bid.UpdatedAt = job.UpdatedAt
		hired = bid
		return nil
	})
	unlock()

	if err != nil {
		if domain.IsKnown(err) && !errors.Is(err, domain.ErrInternal) {
			s.logger.Info("Hire refused",
				slog.String("job_id", jobID),
				slog.String("bid_id", bidID),
				slog.String("reason", err.Error()),
			)
		} else {
			s.logger.Error("Hire transaction aborted",
				slog.String("job_id", jobID),
				slog.String("bid_id", bidID),
				slog.String("error", err.Error()),
			)
		}
		return nil, classify("hire", err)
	}

	s.logger.Info("Bid hired",
		slog.String("job_id", jobID),
		slog.String("bid_id", bidID),
		slog.String("bidder_id", hired.BidderID),
		slog.Int64("rejected_bids", rejected),
	)

	s.notifyHired(ctx, job, hired)

	return hired, nil
}

// notifyHired runs after commit. Failures are logged and never undo the hire.
func (s *Service) notifyHired(ctx context.Context, job *domain.Job, bid *domain.Bid) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	counterpartName := job.OwnerID
	if owner, err := s.store.FindUser(ctx, job.OwnerID); err == nil {
		counterpartName = owner.Name
	} else {
		s.logger.Debug("Owner name unavailable for hire notice",
			slog.String("owner_id", job.OwnerID),
			slog.String("error", err.Error()),
		)
	}

	notice := domain.HiredNotice{
		JobID:           job.JobID,
		JobTitle:        job.Title,
		BidID:           bid.BidID,
		BidderID:        bid.BidderID,
		CounterpartName: counterpartName,
		Price:           bid.Price,
	}

	if err := s.notifier.NotifyHired(ctx, notice); err != nil {
		s.logger.Warn("Failed to deliver hire notification",
			slog.String("job_id", job.JobID),
			slog.String("bidder_id", bid.BidderID),
			slog.String("error", err.Error()),
		)
	}
}

// Complete moves an assigned job to completed. Only the owner or the hired
// bidder may do it.
func (s *Service) Complete(ctx context.Context, jobID, actingUserID string) (*domain.Job, error) {
	var completed *domain.Job

	unlock := s.locks.Lock(jobID)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		job, err := tx.FindJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.Status.CanTransitionTo(domain.JobStatusCompleted) {
			return fmt.Errorf("%w: only assigned jobs can be completed", domain.ErrInvalidState)
		}

		hired, err := tx.FindHiredBid(ctx, jobID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: assigned job %s has no hired bid", domain.ErrInternal, jobID)
			}
			return err
		}

		if actingUserID != job.OwnerID && actingUserID != hired.BidderID {
			return fmt.Errorf("%w: only the job owner or hired bidder can complete the job", domain.ErrForbidden)
		}

		completed, err = tx.UpdateJobStatus(ctx, jobID, domain.JobStatusAssigned, domain.JobStatusCompleted)
		return err
	})
	unlock()

	if err != nil {
		s.logger.Info("Complete refused",
			slog.String("job_id", jobID),
			slog.String("reason", err.Error()),
		)
		return nil, classify("complete", err)
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("completed_by", actingUserID),
	)

	return completed, nil
}
