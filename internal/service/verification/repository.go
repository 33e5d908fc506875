package verification

import (
	"context"

	"github.com/ignite/verifyhub/internal/domain"
)

// LogRepository defines the data access contract for verification logs.
// Implementations must be safe for concurrent use and must enforce the
// LogStatus transition rules, returning ErrInvalidTransition for
// anything CanTransition rejects.
type LogRepository interface {
	// Create inserts a new log entry.
	Create(ctx context.Context, entry *domain.VerificationLog) error

	// GetByJobID returns the log for a bulk job. Returns ErrNotFound if
	// it doesn't exist.
	GetByJobID(ctx context.Context, jobID string) (*domain.VerificationLog, error)

	// ListByUser returns all of a user's logs, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.VerificationLog, error)

	// UpdateStatus transitions a bulk log to the given status and
	// message, returning the updated entry.
	UpdateStatus(ctx context.Context, jobID string, status domain.LogStatus, message string) (*domain.VerificationLog, error)

	// ApplyResults transitions a bulk log to VERIFIED_LIST and copies
	// the final counts in the same write.
	ApplyResults(ctx context.Context, jobID string, counts domain.ResultCounts, message string) (*domain.VerificationLog, error)

	// DeleteByJobID removes a bulk log and returns the deleted entry.
	// Returns ErrNotFound if it doesn't exist.
	DeleteByJobID(ctx context.Context, jobID string) (*domain.VerificationLog, error)
}

// Ledger is the slice of the credit ledger the verification flow needs:
// the consume-one-credit-and-record-it operation, which implementations
// must make atomic (both effects or neither).
type Ledger interface {
	ConsumeAndLog(ctx context.Context, entry *domain.VerificationLog) error
}
