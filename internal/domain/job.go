package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Job is a unit of work posted by an owner
type Job struct {
	JobID       string          `db:"job_id"`
	OwnerID     string          `db:"owner_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Budget      decimal.Decimal `db:"budget"`
	Status      JobStatus       `db:"status"`
	Version     int64           `db:"version"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// Bid is a bidder's proposal against a Job
type Bid struct {
	BidID     string          `db:"bid_id"`
	JobID     string          `db:"job_id"`
	BidderID  string          `db:"bidder_id"`
	Message   string          `db:"message"`
	Price     decimal.Decimal `db:"price"`
	Status    BidStatus       `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Message is a chat line between the owner and the hired bidder of a Job
type Message struct {
	MessageID  string    `db:"message_id" json:"message_id"`
	JobID      string    `db:"job_id" json:"job_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	ReceiverID string    `db:"receiver_id" json:"receiver_id"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// User is the read-only view of an account managed elsewhere
type User struct {
	UserID string `db:"user_id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
}

// HiredNotice is handed to the realtime layer after a hire commits
type HiredNotice struct {
	JobID           string          `json:"job_id"`
	JobTitle        string          `json:"job_title"`
	BidID           string          `json:"bid_id"`
	BidderID        string          `json:"bidder_id"`
	CounterpartName string          `json:"counterpart_name"`
	Price           decimal.Decimal `json:"price"`
}
