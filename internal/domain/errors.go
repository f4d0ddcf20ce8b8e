package domain

import "errors"

var (
	// ErrNotFound is returned when a job, bid or user cannot be found
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller lacks the role for the action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when the action is illegal in the current lifecycle state
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when a bidder already has a bid on the job
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument is returned for malformed input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInternal is returned when a storage write fails and the unit is aborted
	ErrInternal = errors.New("internal error")
)

var kinds = []error{
	ErrNotFound,
	ErrForbidden,
	ErrInvalidState,
	ErrConflict,
	ErrInvalidArgument,
	ErrInternal,
}

// Kind returns the taxonomy sentinel err wraps, or nil if it wraps none of them
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsKnown reports whether err carries one of the taxonomy sentinels
func IsKnown(err error) bool {
	return Kind(err) != nil
}
