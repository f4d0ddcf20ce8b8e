package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
)

// MemoryStore implements Gateway using in-memory maps. A transaction holds the
// store-wide write lock for its whole duration and stages its writes, so
// readers never observe a partially applied unit. Transactions on different
// jobs therefore run one at a time, unlike PostgresStore where only rows of the
// same job contend. It suits tests and single-instance development.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]domain.Job
	bids     map[string]domain.Bid
	bidKeys  map[string]string // job_id|bidder_id -> bid_id
	messages map[string][]domain.Message
	users    map[string]domain.User
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]domain.Job),
		bids:     make(map[string]domain.Bid),
		bidKeys:  make(map[string]string),
		messages: make(map[string][]domain.Message),
		users:    make(map[string]domain.User),
	}
}

func bidKey(jobID, bidderID string) string {
	return jobID + "|" + bidderID
}

// PutUser registers a user. Accounts are managed outside this service, the
// memory store keeps a local copy for display names.
func (s *MemoryStore) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UserID] = user
}

func (s *MemoryStore) FindUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	return &user, nil
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("%w: job %s already exists", domain.ErrConflict, job.JobID)
	}
	s.jobs[job.JobID] = *job
	return nil
}

func (s *MemoryStore) FindJob(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{store: s}).FindJob(ctx, jobID)
}

func (s *MemoryStore) FindBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{store: s}).FindBid(ctx, bidID)
}

func (s *MemoryStore) FindHiredBid(ctx context.Context, jobID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{store: s}).FindHiredBid(ctx, jobID)
}

func (s *MemoryStore) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	if err := checkJobFilter(filter); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]domain.Job, 0)
	for _, job := range s.jobs {
		if filter.OwnerID != "" && job.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(job.Title), search) {
			continue
		}
		if filter.Cursor != nil && !jobBefore(job, filter.Cursor.CreatedAt, filter.Cursor.JobID) {
			continue
		}
		result = append(result, job)
	}

	// created_at DESC, job_id DESC, same as the postgres query
	sort.Slice(result, func(i, j int) bool {
		return jobBefore(result[j], result[i].CreatedAt, result[i].JobID)
	})

	if filter.PageSize > 0 && len(result) > filter.PageSize+1 {
		result = result[:filter.PageSize+1]
	}
	return result, nil
}

// jobBefore reports whether job sorts strictly after (createdAt, jobID) in
// descending order, i.e. (job.CreatedAt, job.JobID) < (createdAt, jobID).
func jobBefore(job domain.Job, createdAt time.Time, jobID string) bool {
	if job.CreatedAt.Equal(createdAt) {
		return job.JobID < jobID
	}
	return job.CreatedAt.Before(createdAt)
}

func (s *MemoryStore) CreateBid(ctx context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[bid.JobID]
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, bid.JobID)
	}
	if job.Status != domain.JobStatusOpen {
		return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidState, job.JobID, job.Status)
	}

	key := bidKey(bid.JobID, bid.BidderID)
	if _, exists := s.bidKeys[key]; exists {
		return fmt.Errorf("%w: bidder %s already bid on job %s", domain.ErrConflict, bid.BidderID, bid.JobID)
	}

	s.bids[bid.BidID] = *bid
	s.bidKeys[key] = bid.BidID
	return nil
}

func (s *MemoryStore) ListBids(ctx context.Context, filter BidFilter) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Bid, 0)
	for _, bid := range s.bids {
		if filter.matches(&bid) {
			result = append(result, bid)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].BidID > result[j].BidID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[msg.JobID]
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, msg.JobID)
	}
	if job.Status != domain.JobStatusAssigned {
		return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidState, job.JobID, job.Status)
	}

	s.messages[msg.JobID] = append(s.messages[msg.JobID], *msg)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, jobID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[jobID]
	result := make([]domain.Message, len(stored))
	copy(result, stored)
	// Appends happen under the write lock, so slice order is creation order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdateJobStatus(ctx context.Context, jobID string, from, to domain.JobStatus) (*domain.Job, error) {
	var updated *domain.Job
	err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		updated, err = tx.UpdateJobStatus(ctx, jobID, from, to)
		return err
	})
	return updated, err
}

func (s *MemoryStore) UpdateBidStatus(ctx context.Context, bidID string, from, to domain.BidStatus) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateBidStatus(ctx, bidID, from, to)
	})
}

func (s *MemoryStore) UpdateManyBids(ctx context.Context, filter BidFilter, to domain.BidStatus) (int64, error) {
	var n int64
	err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		n, err = tx.UpdateManyBids(ctx, filter, to)
		return err
	})
	return n, err
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:      s,
		staged:     true,
		stagedJobs: make(map[string]domain.Job),
		stagedBids: make(map[string]domain.Bid),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	for id, job := range tx.stagedJobs {
		s.jobs[id] = job
	}
	for id, bid := range tx.stagedBids {
		s.bids[id] = bid
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// memTx reads through its staged writes to the store maps. The caller holds
// the store lock.
type memTx struct {
	store      *MemoryStore
	staged     bool
	stagedJobs map[string]domain.Job
	stagedBids map[string]domain.Bid
}

func (t *memTx) job(jobID string) (domain.Job, bool) {
	if job, ok := t.stagedJobs[jobID]; ok {
		return job, true
	}
	job, ok := t.store.jobs[jobID]
	return job, ok
}

func (t *memTx) bid(bidID string) (domain.Bid, bool) {
	if bid, ok := t.stagedBids[bidID]; ok {
		return bid, true
	}
	bid, ok := t.store.bids[bidID]
	return bid, ok
}

func (t *memTx) FindJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, ok := t.job(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return &job, nil
}

func (t *memTx) FindBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	bid, ok := t.bid(bidID)
	if !ok {
		return nil, fmt.Errorf("%w: bid %s", domain.ErrNotFound, bidID)
	}
	return &bid, nil
}

func (t *memTx) FindHiredBid(ctx context.Context, jobID string) (*domain.Bid, error) {
	for id := range t.store.bids {
		bid, _ := t.bid(id)
		if bid.JobID == jobID && bid.Status == domain.BidStatusHired {
			return &bid, nil
		}
	}
	return nil, fmt.Errorf("%w: no hired bid for job %s", domain.ErrNotFound, jobID)
}

func (t *memTx) UpdateJobStatus(ctx context.Context, jobID string, from, to domain.JobStatus) (*domain.Job, error) {
	if !t.staged {
		return nil, fmt.Errorf("%w: write outside transaction", domain.ErrInternal)
	}
	if err := checkJobTransition(jobID, from, to); err != nil {
		return nil, err
	}
	job, ok := t.job(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	if job.Status != from {
		return nil, fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidState, jobID, job.Status, from)
	}
	job.Status = to
	job.Version++
	job.UpdatedAt = time.Now().UTC()
	t.stagedJobs[jobID] = job
	return &job, nil
}

func (t *memTx) UpdateBidStatus(ctx context.Context, bidID string, from, to domain.BidStatus) error {
	if !t.staged {
		return fmt.Errorf("%w: write outside transaction", domain.ErrInternal)
	}
	if err := checkBidTransition(from, to); err != nil {
		return err
	}
	bid, ok := t.bid(bidID)
	if !ok {
		return fmt.Errorf("%w: bid %s", domain.ErrNotFound, bidID)
	}
	if bid.Status != from {
		return fmt.Errorf("%w: bid %s is %s, expected %s", domain.ErrInvalidState, bidID, bid.Status, from)
	}
	bid.Status = to
	bid.UpdatedAt = time.Now().UTC()
	t.stagedBids[bidID] = bid
	return nil
}

func (t *memTx) UpdateManyBids(ctx context.Context, filter BidFilter, to domain.BidStatus) (int64, error) {
	if !t.staged {
		return 0, fmt.Errorf("%w: write outside transaction", domain.ErrInternal)
	}
	// The status filter is the from side of the swap and must be set.
	if err := checkBidTransition(filter.Status, to); err != nil {
		return 0, err
	}
	var affected int64
	now := time.Now().UTC()
	for id := range t.store.bids {
		bid, _ := t.bid(id)
		if !filter.matches(&bid) {
			continue
		}
		bid.Status = to
		bid.UpdatedAt = now
		t.stagedBids[id] = bid
		affected++
	}
	return affected, nil
}
