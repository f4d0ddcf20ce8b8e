package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/cuongbtq/gigflow/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	jobColumns     = "job_id, owner_id, title, description, budget, status, version, created_at, updated_at"
	bidColumns     = "bid_id, job_id, bidder_id, message, price, status, created_at, updated_at"
	messageColumns = "message_id, job_id, sender_id, receiver_id, text, created_at"

	// uniqueViolation is the postgres error code for a unique constraint failure
	uniqueViolation = "23505"
	// checkViolation is raised when a row fails a CHECK constraint
	checkViolation = "23514"
	// numericOutOfRange is raised when a value overflows NUMERIC(14, 2)
	numericOutOfRange = "22003"
)

// PostgresStore implements Gateway on top of PostgreSQL
type PostgresStore struct {
	*queries
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Storage instance backed by the given client
func NewPostgresStore(pg *postgresql.Client, logger *slog.Logger) *PostgresStore {
	return NewPostgresStoreFromDB(pg.GetDB(), logger)
}

// NewPostgresStoreFromDB wraps an existing connection pool
func NewPostgresStoreFromDB(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		queries: &queries{q: db},
		db:      db,
		logger:  logger,
	}
}

// queries runs statements against either the pool or an open transaction.
// Inside a transaction rows are read with FOR UPDATE so concurrent units on the
// same job queue behind each other.
type queries struct {
	q         sqlx.ExtContext
	forUpdate bool
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrInternal, err)
	}

	if err := fn(ctx, &queries{q: tx, forUpdate: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback transaction",
				slog.String("error", rbErr.Error()),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", domain.ErrInternal, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, owner_id, title, description,
			budget, status, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.OwnerID,
		job.Title,
		job.Description,
		job.Budget,
		job.Status,
		job.Version,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: job %s already exists", domain.ErrConflict, job.JobID)
		}
		if isRejectedValue(err) {
			return fmt.Errorf("%w: job rejected by database: %s", domain.ErrInvalidArgument, pqMessage(err))
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	if err := checkJobFilter(filter); err != nil {
		return nil, err
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Search != "" {
		query += fmt.Sprintf(" AND title ILIKE $%d", argIdx)
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	if filter.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *PostgresStore) CreateBid(ctx context.Context, bid *domain.Bid) error {
	// The job row is share-locked so the insert waits for an in-flight hire
	// and then sees the committed status.
	query := `
		INSERT INTO bids (
			bid_id, job_id, bidder_id, message,
			price, status, created_at, updated_at
		)
		SELECT $1::text, j.job_id, $3::text, $4::text,
			$5::numeric, $6::text, $7::timestamptz, $8::timestamptz
		FROM jobs j
		WHERE j.job_id = $2 AND j.status = $9
		FOR SHARE OF j
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		bid.BidID,
		bid.JobID,
		bid.BidderID,
		bid.Message,
		bid.Price,
		bid.Status,
		bid.CreatedAt,
		bid.UpdatedAt,
		domain.JobStatusOpen,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: bidder %s already bid on job %s", domain.ErrConflict, bid.BidderID, bid.JobID)
		}
		if isRejectedValue(err) {
			return fmt.Errorf("%w: bid rejected by database: %s", domain.ErrInvalidArgument, pqMessage(err))
		}
		return fmt.Errorf("failed to create bid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: job %s is not open", domain.ErrInvalidState, bid.JobID)
	}

	return nil
}

func (s *PostgresStore) ListBids(ctx context.Context, filter BidFilter) ([]domain.Bid, error) {
	where, args := bidWhere(filter, 1)
	query := `SELECT ` + bidColumns + ` FROM bids WHERE 1=1` + where + ` ORDER BY created_at DESC, bid_id DESC`

	var bids []domain.Bid
	if err := s.db.SelectContext(ctx, &bids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	return bids, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (
			message_id, job_id, sender_id, receiver_id, text, created_at
		)
		SELECT $1::text, j.job_id, $3::text, $4::text, $5::text, $6::timestamptz
		FROM jobs j
		WHERE j.job_id = $2 AND j.status = $7
		FOR SHARE OF j
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		msg.MessageID,
		msg.JobID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Text,
		msg.CreatedAt,
		domain.JobStatusAssigned,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: job %s is not assigned", domain.ErrInvalidState, msg.JobID)
	}

	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, jobID string) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE job_id = $1 ORDER BY created_at ASC, message_id ASC`

	var messages []domain.Message
	if err := s.db.SelectContext(ctx, &messages, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

func (s *PostgresStore) FindUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, `SELECT user_id, name, email FROM users WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (q *queries) lockClause() string {
	if q.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (q *queries) FindJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1` + q.lockClause()

	var job domain.Job
	if err := sqlx.GetContext(ctx, q.q, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (q *queries) FindBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE bid_id = $1` + q.lockClause()

	var bid domain.Bid
	if err := sqlx.GetContext(ctx, q.q, &bid, query, bidID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: bid %s", domain.ErrNotFound, bidID)
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	return &bid, nil
}

func (q *queries) FindHiredBid(ctx context.Context, jobID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE job_id = $1 AND status = $2 LIMIT 1`

	var bid domain.Bid
	if err := sqlx.GetContext(ctx, q.q, &bid, query, jobID, domain.BidStatusHired); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no hired bid for job %s", domain.ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get hired bid: %w", err)
	}

	return &bid, nil
}

// UpdateJobStatus moves the job from one status to another using optimistic locking
func (q *queries) UpdateJobStatus(ctx context.Context, jobID string, from, to domain.JobStatus) (*domain.Job, error) {
	if err := checkJobTransition(jobID, from, to); err != nil {
		return nil, err
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status = $3
		RETURNING ` + jobColumns

	var job domain.Job
	if err := sqlx.GetContext(ctx, q.q, &job, query, to, jobID, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s is no longer %s", domain.ErrInvalidState, jobID, from)
		}
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	return &job, nil
}

func (q *queries) UpdateBidStatus(ctx context.Context, bidID string, from, to domain.BidStatus) error {
	if err := checkBidTransition(from, to); err != nil {
		return err
	}

	query := `
		UPDATE bids
		SET status = $1,
		    updated_at = NOW()
		WHERE bid_id = $2
		  AND status = $3
	`

	result, err := q.q.ExecContext(ctx, query, to, bidID, from)
	if err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: bid %s is no longer %s", domain.ErrInvalidState, bidID, from)
	}

	return nil
}

func (q *queries) UpdateManyBids(ctx context.Context, filter BidFilter, to domain.BidStatus) (int64, error) {
	if err := checkBidTransition(filter.Status, to); err != nil {
		return 0, err
	}

	where, args := bidWhere(filter, 2)
	query := `UPDATE bids SET status = $1, updated_at = NOW() WHERE 1=1` + where

	result, err := q.q.ExecContext(ctx, query, append([]interface{}{to}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to update bids: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// bidWhere renders filter as AND clauses with placeholders starting at argIdx
func bidWhere(filter BidFilter, argIdx int) (string, []interface{}) {
	where := ""
	args := []interface{}{}

	if filter.JobID != "" {
		where += fmt.Sprintf(" AND job_id = $%d", argIdx)
		args = append(args, filter.JobID)
		argIdx++
	}

	if filter.BidderID != "" {
		where += fmt.Sprintf(" AND bidder_id = $%d", argIdx)
		args = append(args, filter.BidderID)
		argIdx++
	}

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.ExcludeBidID != "" {
		where += fmt.Sprintf(" AND bid_id <> $%d", argIdx)
		args = append(args, filter.ExcludeBidID)
	}

	return where, args
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// isRejectedValue reports whether the row failed a CHECK constraint or a
// numeric column overflowed.
func isRejectedValue(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && (pqErr.Code == checkViolation || pqErr.Code == numericOutOfRange)
}

func pqMessage(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	return err.Error()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
