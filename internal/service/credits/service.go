// Package credits keeps the local credit ledger in step with the
// provider's account balance and handles manual allotments.
package credits

import (
	"context"
	"time"

	"github.com/ignite/verifyhub/internal/bouncify"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/pkg/distlock"
	"github.com/ignite/verifyhub/internal/pkg/logger"
)

// CreditsProvider exposes the provider's account balance.
type CreditsProvider interface {
	CreditsInfo(ctx context.Context) (*bouncify.CreditsInfo, error)
}

// Summary is the caller-facing credit snapshot.
type Summary struct {
	Allotted  int `json:"credits_allotted"`
	Consumed  int `json:"credits_consumed"`
	Remaining int `json:"credits_remaining"`
}

// syncLockTTL bounds how long a stuck sync can hold the per-user lock.
const syncLockTTL = 15 * time.Second

type Service struct {
	provider CreditsProvider
	repo     Repository
	locks    distlock.Factory
}

func NewService(provider CreditsProvider, repo Repository, locks distlock.Factory) *Service {
	return &Service{provider: provider, repo: repo, locks: locks}
}

// Sync refreshes the user's ledger from the provider balance and
// returns the resulting summary. The read-modify-write runs under a
// per-user distributed lock so concurrent syncs cannot interleave.
func (s *Service) Sync(ctx context.Context, userID string) (*Summary, error) {
	lock := s.locks("credits:"+userID, syncLockTTL)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockBusy
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("credit sync lock release failed", "user_id", userID, "error", err.Error())
		}
	}()

	info, err := s.provider.CreditsInfo(ctx)
	if err != nil {
		// Provider unreachable: serve the last known ledger instead of
		// failing the whole request.
		ledger, getErr := s.repo.Get(ctx, userID)
		if getErr != nil {
			return nil, err
		}
		logger.Warn("serving stale credit balance, provider unavailable",
			"user_id", userID, "error", err.Error())
		return summarize(ledger), nil
	}

	remaining := info.CreditsRemaining
	if remaining < 0 {
		remaining = 0
	}
	ledger, err := s.repo.UpsertRemaining(ctx, userID, remaining)
	if err != nil {
		return nil, err
	}
	return summarize(ledger), nil
}

// Allot replaces the user's total credit allotment.
func (s *Service) Allot(ctx context.Context, userID string, amount int) (*Summary, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	ledger, err := s.repo.SetAllotted(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	return summarize(ledger), nil
}

// Balance returns the locally stored ledger without contacting the
// provider.
func (s *Service) Balance(ctx context.Context, userID string) (*Summary, error) {
	ledger, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summarize(ledger), nil
}

func summarize(ledger *domain.CreditLedger) *Summary {
	return &Summary{
		Allotted:  ledger.CreditsAllotted,
		Consumed:  ledger.Consumed(),
		Remaining: ledger.CreditsRemaining,
	}
}
