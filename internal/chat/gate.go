package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/cuongbtq/gigflow/internal/storage"
)

// Access is the kind of messaging access being requested
type Access int

const (
	// AccessWrite covers sending messages and joining the live room
	AccessWrite Access = iota
	// AccessRead covers reading the message history
	AccessRead
)

func (a Access) String() string {
	if a == AccessRead {
		return "read"
	}
	return "write"
}

// Grant is what a successful check proves about the participants
type Grant struct {
	Job           domain.Job
	HiredBid      domain.Bid
	CounterpartID string
}

// Gate decides whether a user may use a job's message channel. Nothing is
// cached: job and hired bid are read from the store on every check.
type Gate struct {
	store                  storage.Gateway
	historyAfterCompletion bool
}

// NewGate creates a gate. With historyAfterCompletion set, both parties keep
// read access to the history once the job is completed.
func NewGate(store storage.Gateway, historyAfterCompletion bool) *Gate {
	return &Gate{store: store, historyAfterCompletion: historyAfterCompletion}
}

// Check returns the grant for userID on jobID, or domain.ErrForbidden with the
// reason. Storage faults come back as they are.
func (g *Gate) Check(ctx context.Context, jobID, userID string, access Access) (*Grant, error) {
	job, err := g.store.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: job not found", domain.ErrForbidden)
		}
		return nil, err
	}

	if !g.statusAllows(job.Status, access) {
		return nil, fmt.Errorf("%w: messaging is only available for assigned jobs", domain.ErrForbidden)
	}

	hired, err := g.store.FindHiredBid(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no hired bidder for this job", domain.ErrForbidden)
		}
		return nil, err
	}

	grant := &Grant{Job: *job, HiredBid: *hired}
	switch userID {
	case job.OwnerID:
		grant.CounterpartID = hired.BidderID
	case hired.BidderID:
		grant.CounterpartID = job.OwnerID
	default:
		return nil, fmt.Errorf("%w: only the job owner and hired bidder can message", domain.ErrForbidden)
	}

	return grant, nil
}

func (g *Gate) statusAllows(status domain.JobStatus, access Access) bool {
	switch status {
	case domain.JobStatusAssigned:
		return true
	case domain.JobStatusCompleted:
		return access == AccessRead && g.historyAfterCompletion
	default:
		return false
	}
}
