package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/service/credits"
)

// defaultAllotment seeds a ledger created lazily on first use.
const defaultAllotment = 100

// CreditLedgerRepo implements credits.Repository and the verification
// service's Ledger against PostgreSQL.
type CreditLedgerRepo struct{ db *sql.DB }

// NewCreditLedgerRepo creates a Postgres-backed credit ledger.
func NewCreditLedgerRepo(db *sql.DB) *CreditLedgerRepo {
	return &CreditLedgerRepo{db: db}
}

const ledgerColumns = `id, user_id, credits_allotted, credits_remaining, created_at, updated_at`

func scanLedger(row interface{ Scan(...interface{}) error }) (*domain.CreditLedger, error) {
	l := &domain.CreditLedger{}
	err := row.Scan(&l.ID, &l.UserID, &l.CreditsAllotted, &l.CreditsRemaining,
		&l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *CreditLedgerRepo) Get(ctx context.Context, userID string) (*domain.CreditLedger, error) {
	ledger, err := scanLedger(r.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM verify_credit_ledgers
		WHERE user_id = $1
	`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credits.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credit ledger: %w", err)
	}
	return ledger, nil
}

// UpsertRemaining writes the remaining balance, creating the ledger
// with the default allotment when the user has none yet.
func (r *CreditLedgerRepo) UpsertRemaining(ctx context.Context, userID string, remaining int) (*domain.CreditLedger, error) {
	if remaining < 0 {
		remaining = 0
	}
	ledger, err := scanLedger(r.db.QueryRowContext(ctx, `
		INSERT INTO verify_credit_ledgers
			(id, user_id, credits_allotted, credits_remaining, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
			SET credits_remaining = EXCLUDED.credits_remaining, updated_at = NOW()
		RETURNING `+ledgerColumns+`
	`, uuid.New().String(), userID, defaultAllotment, remaining))
	if err != nil {
		return nil, fmt.Errorf("upsert credit ledger: %w", err)
	}
	return ledger, nil
}

// SetAllotted replaces the user's total allotment, creating the ledger
// when missing. A fresh ledger starts with the full amount remaining.
func (r *CreditLedgerRepo) SetAllotted(ctx context.Context, userID string, allotted int) (*domain.CreditLedger, error) {
	ledger, err := scanLedger(r.db.QueryRowContext(ctx, `
		INSERT INTO verify_credit_ledgers
			(id, user_id, credits_allotted, credits_remaining, created_at, updated_at)
		VALUES ($1, $2, $3, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
			SET credits_allotted = EXCLUDED.credits_allotted, updated_at = NOW()
		RETURNING `+ledgerColumns+`
	`, uuid.New().String(), userID, allotted))
	if err != nil {
		return nil, fmt.Errorf("set credit allotment: %w", err)
	}
	return ledger, nil
}

// ConsumeAndLog decrements one credit and inserts the log entry in a
// single transaction. The guarded UPDATE only matches when at least one
// credit remains, so the balance can never go negative. If the user has
// no ledger yet one is created with the default allotment, already
// minus the consumed credit.
func (r *CreditLedgerRepo) ConsumeAndLog(ctx context.Context, entry *domain.VerificationLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consume: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE verify_credit_ledgers
		SET credits_remaining = credits_remaining - 1, updated_at = NOW()
		WHERE user_id = $1 AND credits_remaining >= 1
	`, entry.UserID)
	if err != nil {
		return fmt.Errorf("consume credit: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		exists, err := ledgerExists(ctx, tx, entry.UserID)
		if err != nil {
			return err
		}
		if exists {
			return credits.ErrInsufficientCredits
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO verify_credit_ledgers
				(id, user_id, credits_allotted, credits_remaining, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
		`, uuid.New().String(), entry.UserID, defaultAllotment, defaultAllotment-1)
		if err != nil {
			return fmt.Errorf("create ledger on consume: %w", err)
		}
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO verify_logs
			(id, user_id, created_at, message, status, credits_kind, no_of_credits,
			 source_type, source_name, job_id, deliverable, undeliverable,
			 unknown, accept_all, total_emails)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, entry.ID, entry.UserID, entry.CreatedAt, entry.Message, entry.Status,
		entry.CreditsKind, entry.NoOfCredits, entry.SourceType, entry.SourceName,
		entry.JobID, entry.Deliverable, entry.Undeliverable, entry.Unknown,
		entry.AcceptAll, entry.TotalEmails)
	if err != nil {
		return fmt.Errorf("log consumed credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consume: %w", err)
	}
	return nil
}

func ledgerExists(ctx context.Context, tx *sql.Tx, userID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM verify_credit_ledgers WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return exists, nil
}
