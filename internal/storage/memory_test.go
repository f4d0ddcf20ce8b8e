package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var baseTime = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func newJob(id, owner string, status domain.JobStatus, createdAt time.Time) *domain.Job {
	return &domain.Job{
		JobID:       id,
		OwnerID:     owner,
		Title:       "Job " + id,
		Description: "description",
		Budget:      decimal.NewFromInt(100),
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func newBid(id, jobID, bidder string) *domain.Bid {
	return &domain.Bid{
		BidID:     id,
		JobID:     jobID,
		BidderID:  bidder,
		Message:   "pick me",
		Price:     decimal.NewFromInt(90),
		Status:    domain.BidStatusPending,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func seedOpenJob(t *testing.T, store *MemoryStore, bidders ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newJob("job-1", "owner", domain.JobStatusOpen, baseTime)))
	for i, bidder := range bidders {
		require.NoError(t, store.CreateBid(ctx, newBid(fmt.Sprintf("bid-%d", i+1), "job-1", bidder)))
	}
}

func TestMemoryStore_CreateBid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOpenJob(t, store, "alice")

	err := store.CreateBid(ctx, newBid("bid-dup", "job-1", "alice"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = store.CreateBid(ctx, newBid("bid-x", "missing", "bob"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.CreateJob(ctx, newJob("job-2", "owner", domain.JobStatusAssigned, baseTime)))
	err = store.CreateBid(ctx, newBid("bid-y", "job-2", "bob"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = store.CreateJob(ctx, newJob("job-1", "owner", domain.JobStatusOpen, baseTime))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMemoryStore_RunInTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOpenJob(t, store, "alice", "bob", "carol")

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusAssigned); err != nil {
			return err
		}
		if err := tx.UpdateBidStatus(ctx, "bid-1", domain.BidStatusPending, domain.BidStatusHired); err != nil {
			return err
		}

		// reads inside the unit see its own staged writes
		hired, err := tx.FindHiredBid(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, "bid-1", hired.BidID)

		n, err := tx.UpdateManyBids(ctx, BidFilter{
			JobID:        "job-1",
			Status:       domain.BidStatusPending,
			ExcludeBidID: "bid-1",
		}, domain.BidStatusRejected)
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)

	job, err := store.FindJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusAssigned, job.Status)
	assert.Equal(t, int64(1), job.Version)

	bids, err := store.ListBids(ctx, BidFilter{JobID: "job-1"})
	require.NoError(t, err)
	statuses := map[string]domain.BidStatus{}
	for _, b := range bids {
		statuses[b.BidID] = b.Status
	}
	assert.Equal(t, map[string]domain.BidStatus{
		"bid-1": domain.BidStatusHired,
		"bid-2": domain.BidStatusRejected,
		"bid-3": domain.BidStatusRejected,
	}, statuses)
}

func TestMemoryStore_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOpenJob(t, store, "alice", "bob")

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusAssigned); err != nil {
			return err
		}
		if err := tx.UpdateBidStatus(ctx, "bid-1", domain.BidStatusPending, domain.BidStatusHired); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	job, err := store.FindJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, job.Status)

	bid, err := store.FindBid(ctx, "bid-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusPending, bid.Status)

	_, err = store.FindHiredBid(ctx, "job-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_RunInTxCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	seedOpenJob(t, store, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusAssigned)
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	job, err := store.FindJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, job.Status)
}

func TestMemoryStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOpenJob(t, store, "alice")

	_, err := store.UpdateJobStatus(ctx, "job-1", domain.JobStatusAssigned, domain.JobStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = store.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusAssigned)
	require.NoError(t, err)

	_, err = store.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusAssigned)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = store.UpdateBidStatus(ctx, "bid-1", domain.BidStatusHired, domain.BidStatusRejected)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = store.UpdateBidStatus(ctx, "missing", domain.BidStatusPending, domain.BidStatusHired)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_LifecycleGuards(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOpenJob(t, store, "alice", "bob")

	tests := []struct {
		name  string
		write func() error
	}{
		{
			name: "job skips assigned",
			write: func() error {
				_, err := store.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusCompleted)
				return err
			},
		},
		{
			name: "job moves backwards",
			write: func() error {
				_, err := store.UpdateJobStatus(ctx, "job-1", domain.JobStatusCompleted, domain.JobStatusOpen)
				return err
			},
		},
		{
			name: "job to unknown status",
			write: func() error {
				_, err := store.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, "archived")
				return err
			},
		},
		{
			name: "bid back to pending",
			write: func() error {
				return store.UpdateBidStatus(ctx, "bid-1", domain.BidStatusPending, domain.BidStatusPending)
			},
		},
		{
			name: "bulk update without a from status",
			write: func() error {
				_, err := store.UpdateManyBids(ctx, BidFilter{JobID: "job-1"}, domain.BidStatusRejected)
				return err
			},
		},
		{
			name: "bulk update out of a terminal status",
			write: func() error {
				_, err := store.UpdateManyBids(ctx, BidFilter{JobID: "job-1", Status: domain.BidStatusRejected}, domain.BidStatusHired)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.write(), domain.ErrInvalidState)
		})
	}

	job, err := store.FindJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, job.Status)
	assert.Equal(t, int64(0), job.Version)

	bids, err := store.ListBids(ctx, BidFilter{JobID: "job-1", Status: domain.BidStatusPending})
	require.NoError(t, err)
	assert.Len(t, bids, 2)
}

func TestMemoryStore_TransactionsSerializeAcrossJobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, newJob("job-1", "owner", domain.JobStatusOpen, baseTime)))
	require.NoError(t, store.CreateJob(ctx, newJob("job-2", "owner", domain.JobStatusOpen, baseTime)))

	entered := make(chan struct{})
	release := make(chan struct{})
	secondDone := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		return store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			close(entered)
			<-release
			_, err := tx.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusAssigned)
			return err
		})
	})

	<-entered
	g.Go(func() error {
		defer close(secondDone)
		_, err := store.UpdateJobStatus(ctx, "job-2", domain.JobStatusOpen, domain.JobStatusAssigned)
		return err
	})

	// a unit on job-2 waits for the unit holding job-1
	assert.Never(t, func() bool {
		select {
		case <-secondDone:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	require.NoError(t, g.Wait())

	for _, id := range []string{"job-1", "job-2"} {
		job, err := store.FindJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusAssigned, job.Status)
	}
}

func TestMemoryStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// two jobs share a timestamp so the job id breaks the tie
	require.NoError(t, store.CreateJob(ctx, newJob("a", "owner-1", domain.JobStatusOpen, baseTime)))
	require.NoError(t, store.CreateJob(ctx, newJob("b", "owner-1", domain.JobStatusOpen, baseTime)))
	require.NoError(t, store.CreateJob(ctx, newJob("c", "owner-2", domain.JobStatusOpen, baseTime.Add(time.Minute))))
	require.NoError(t, store.CreateJob(ctx, newJob("d", "owner-2", domain.JobStatusAssigned, baseTime.Add(2*time.Minute))))

	ids := func(jobs []domain.Job) []string {
		out := make([]string, len(jobs))
		for i, j := range jobs {
			out[i] = j.JobID
		}
		return out
	}

	all, err := store.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(all))

	open, err := store.ListJobs(ctx, JobFilter{Status: domain.JobStatusOpen, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(open), "one extra row signals the next page")

	next, err := store.ListJobs(ctx, JobFilter{
		Status:   domain.JobStatusOpen,
		PageSize: 1,
		Cursor:   &JobCursor{CreatedAt: open[0].CreatedAt, JobID: open[0].JobID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(next))

	last, err := store.ListJobs(ctx, JobFilter{
		Status:   domain.JobStatusOpen,
		PageSize: 1,
		Cursor:   &JobCursor{CreatedAt: baseTime, JobID: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(last))

	mine, err := store.ListJobs(ctx, JobFilter{OwnerID: "owner-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, ids(mine))

	search, err := store.ListJobs(ctx, JobFilter{Search: "  JOB C "})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(search))

	_, err = store.ListJobs(ctx, JobFilter{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestMemoryStore_Messages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedOpenJob(t, store, "alice")

	msg := &domain.Message{
		MessageID:  "m-1",
		JobID:      "job-1",
		SenderID:   "alice",
		ReceiverID: "owner",
		Text:       "hello",
		CreatedAt:  baseTime,
	}
	assert.ErrorIs(t, store.CreateMessage(ctx, msg), domain.ErrInvalidState)

	_, err := store.UpdateJobStatus(ctx, "job-1", domain.JobStatusOpen, domain.JobStatusAssigned)
	require.NoError(t, err)

	require.NoError(t, store.CreateMessage(ctx, msg))
	second := *msg
	second.MessageID = "m-2"
	second.CreatedAt = baseTime.Add(time.Second)
	require.NoError(t, store.CreateMessage(ctx, &second))

	messages, err := store.ListMessages(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m-1", messages[0].MessageID)
	assert.Equal(t, "m-2", messages[1].MessageID)

	missing := *msg
	missing.JobID = "nope"
	assert.ErrorIs(t, store.CreateMessage(ctx, &missing), domain.ErrNotFound)
}

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.FindUser(ctx, "u-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	store.PutUser(domain.User{UserID: "u-1", Name: "Ana"})
	user, err := store.FindUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
}
