package domain

// JobStatus is the lifecycle state of a Job
type JobStatus string

// Job status constants
const (
	JobStatusOpen      JobStatus = "open"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusCompleted JobStatus = "completed"
)

// BidStatus is the lifecycle state of a Bid
type BidStatus string

// Bid status constants
const (
	BidStatusPending  BidStatus = "pending"
	BidStatusHired    BidStatus = "hired"
	BidStatusRejected BidStatus = "rejected"
)

// CanTransitionTo reports whether the job lifecycle allows moving from s to next.
// Open -> Assigned -> Completed, never backwards.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusOpen:
		return next == JobStatusAssigned
	case JobStatusAssigned:
		return next == JobStatusCompleted
	default:
		return false
	}
}

// Valid reports whether s is a known job status
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusOpen, JobStatusAssigned, JobStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a bid may move from s to next.
// Hired and Rejected are terminal.
func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	return s == BidStatusPending && (next == BidStatusHired || next == BidStatusRejected)
}

// Terminal reports whether the bid can no longer change
func (s BidStatus) Terminal() bool {
	return s == BidStatusHired || s == BidStatusRejected
}
