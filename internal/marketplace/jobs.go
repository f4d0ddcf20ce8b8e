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

const (
	// DefaultPageSize is used when a listing request does not ask for a size.
	DefaultPageSize = 20
	// MaxPageSize caps the page size of every job listing.
	MaxPageSize = 100
)

// NewJob is the input for posting a job
type NewJob struct {
	Title       string
	Description string
	Budget      decimal.Decimal
}

// PostedJob is a job as seen by its owner, with the hired bid once there is one
type PostedJob struct {
	Job      domain.Job
	HiredBid *domain.Bid
}

// PostJob creates a new open job owned by ownerID
func (s *Service) PostJob(ctx context.Context, ownerID string, input NewJob) (*domain.Job, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidArgument)
	}
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", domain.ErrInvalidArgument)
	}
	if err := checkAmount("budget", input.Budget); err != nil {
		return nil, err
	}

	now := s.now()
	job := &domain.Job{
		JobID:       uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Budget:      input.Budget,
		Status:      domain.JobStatusOpen,
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		s.logger.Error("Failed to create job",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, classify("create job", err)
	}

	s.logger.Info("Job posted",
		slog.String("job_id", job.JobID),
		slog.String("owner_id", ownerID),
	)

	return job, nil
}

// GetJob returns a single job
func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, classify("get job", err)
	}
	return job, nil
}

// ListOpenJobs lists jobs still accepting bids, newest first. The result holds
// up to PageSize+1 jobs; the extra one signals that another page exists.
func (s *Service) ListOpenJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	filter.Status = domain.JobStatusOpen
	filter.OwnerID = ""
	if filter.PageSize <= 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}

	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, classify("list jobs", err)
	}
	return jobs, nil
}

// ListPostedJobs lists every job owned by ownerID with its hired bid when assigned or completed
func (s *Service) ListPostedJobs(ctx context.Context, ownerID string) ([]PostedJob, error) {
	jobs, err := s.store.ListJobs(ctx, storage.JobFilter{OwnerID: ownerID})
	if err != nil {
		return nil, classify("list posted jobs", err)
	}

	result := make([]PostedJob, 0, len(jobs))
	for _, job := range jobs {
		posted := PostedJob{Job: job}
		if job.Status != domain.JobStatusOpen {
			hired, err := s.store.FindHiredBid(ctx, job.JobID)
			switch {
			case err == nil:
				posted.HiredBid = hired
			case errors.Is(err, domain.ErrNotFound):
				s.logger.Warn("Assigned job has no hired bid",
					slog.String("job_id", job.JobID),
				)
			default:
				return nil, classify("find hired bid", err)
			}
		}
		result = append(result, posted)
	}

	return result, nil
}
