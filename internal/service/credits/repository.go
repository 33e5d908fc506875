package credits

import (
	"context"

	"github.com/ignite/verifyhub/internal/domain"
)

// Repository persists per-user credit ledgers.
type Repository interface {
	// Get returns the user's ledger, or ErrNotFound when none exists.
	Get(ctx context.Context, userID string) (*domain.CreditLedger, error)

	// UpsertRemaining sets the remaining balance, creating the ledger
	// with the default allotment when the user has none yet.
	UpsertRemaining(ctx context.Context, userID string, remaining int) (*domain.CreditLedger, error)

	// SetAllotted replaces the user's total allotment.
	SetAllotted(ctx context.Context, userID string, allotted int) (*domain.CreditLedger, error)
}
