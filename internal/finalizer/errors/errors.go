package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrLockHeld means another worker instance currently holds the
	// finalize lock for the booking. Not a failure: skip and retry on a
	// later tick.
	ErrLockHeld = errors.New("finalize lock held by another worker")

	// ErrAlreadyFinalized means the conditional status update matched
	// zero rows: some other holder committed first. Treated as a no-op
	// success, never surfaced as an error event.
	ErrAlreadyFinalized = errors.New("booking already finalized")

	ErrNoEligibleBids = errors.New("no eligible bids for booking")
)
