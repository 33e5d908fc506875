package credits

import "errors"

var (
	// ErrNotFound means no ledger exists for the user yet.
	ErrNotFound = errors.New("credit ledger not found")

	// ErrInsufficientCredits means the user has no credits left to spend.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrLockBusy means another sync for the same user holds the lock.
	ErrLockBusy = errors.New("credit sync already in progress")

	// ErrInvalidAmount rejects zero or negative allotments.
	ErrInvalidAmount = errors.New("credit amount must be positive")
)
