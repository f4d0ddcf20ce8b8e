package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
)

// Tx is the set of reads and conditional writes that take part in one atomic unit.
// Every status update is a compare-and-swap: it only applies when the stored
// status still equals from, and otherwise fails with domain.ErrInvalidState.
type Tx interface {
	FindJob(ctx context.Context, jobID string) (*domain.Job, error)
	FindBid(ctx context.Context, bidID string) (*domain.Bid, error)
	FindHiredBid(ctx context.Context, jobID string) (*domain.Bid, error)

	UpdateJobStatus(ctx context.Context, jobID string, from, to domain.JobStatus) (*domain.Job, error)
	UpdateBidStatus(ctx context.Context, bidID string, from, to domain.BidStatus) error
	UpdateManyBids(ctx context.Context, filter BidFilter, to domain.BidStatus) (int64, error)
}

// Gateway is the durable store for jobs, bids and messages
type Gateway interface {
	Tx

	CreateJob(ctx context.Context, job *domain.Job) error
	ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error)

	// CreateBid inserts a pending bid only while the parent job is open.
	CreateBid(ctx context.Context, bid *domain.Bid) error
	ListBids(ctx context.Context, filter BidFilter) ([]domain.Bid, error)

	// CreateMessage inserts a message only while the parent job is assigned.
	CreateMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, jobID string) ([]domain.Message, error)

	FindUser(ctx context.Context, userID string) (*domain.User, error)

	// RunInTx runs fn as one unit: every write inside commits together or none does.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

// JobFilter selects jobs for listing
type JobFilter struct {
	OwnerID  string
	Status   domain.JobStatus
	Search   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset position of the last job of a page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// BidFilter selects bids. Empty fields match everything.
type BidFilter struct {
	JobID        string
	BidderID     string
	Status       domain.BidStatus
	ExcludeBidID string
}

func (f BidFilter) matches(bid *domain.Bid) bool {
	if f.JobID != "" && bid.JobID != f.JobID {
		return false
	}
	if f.BidderID != "" && bid.BidderID != f.BidderID {
		return false
	}
	if f.Status != "" && bid.Status != f.Status {
		return false
	}
	if f.ExcludeBidID != "" && bid.BidID == f.ExcludeBidID {
		return false
	}
	return true
}

// checkJobTransition rejects status writes the job lifecycle does not allow,
// before any row is touched.
func checkJobTransition(jobID string, from, to domain.JobStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: job %s cannot move from %s to %s", domain.ErrInvalidState, jobID, from, to)
	}
	return nil
}

func checkBidTransition(from, to domain.BidStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: bid cannot move from %s to %s", domain.ErrInvalidState, from, to)
	}
	return nil
}

// checkJobFilter rejects a status filter that names no known job status.
func checkJobFilter(filter JobFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", domain.ErrInvalidArgument, filter.Status)
	}
	return nil
}
