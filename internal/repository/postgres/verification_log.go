package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/service/verification"
)

// VerificationLogRepo implements verification.LogRepository against
// PostgreSQL. Status updates lock the row and check the transition
// table before writing, so concurrent pollers cannot push a log
// backwards.
type VerificationLogRepo struct{ db *sql.DB }

// NewVerificationLogRepo creates a Postgres-backed log repository.
func NewVerificationLogRepo(db *sql.DB) *VerificationLogRepo {
	return &VerificationLogRepo{db: db}
}

const logColumns = `id, user_id, created_at, COALESCE(message,''), status, credits_kind,
	       no_of_credits, source_type, source_name, COALESCE(job_id,''),
	       deliverable, undeliverable, unknown, accept_all, total_emails`

func scanLog(row interface{ Scan(...interface{}) error }) (*domain.VerificationLog, error) {
	entry := &domain.VerificationLog{}
	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.CreatedAt, &entry.Message, &entry.Status,
		&entry.CreditsKind, &entry.NoOfCredits, &entry.SourceType, &entry.SourceName,
		&entry.JobID, &entry.Deliverable, &entry.Undeliverable, &entry.Unknown,
		&entry.AcceptAll, &entry.TotalEmails,
	)
	return entry, err
}

func (r *VerificationLogRepo) Create(ctx context.Context, entry *domain.VerificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
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
		return fmt.Errorf("create verification log: %w", err)
	}
	return nil
}

func (r *VerificationLogRepo) GetByJobID(ctx context.Context, jobID string) (*domain.VerificationLog, error) {
	entry, err := scanLog(r.db.QueryRowContext(ctx, `
		SELECT `+logColumns+`
		FROM verify_logs
		WHERE job_id = $1
	`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get verification log: %w", err)
	}
	return entry, nil
}

func (r *VerificationLogRepo) ListByUser(ctx context.Context, userID string) ([]domain.VerificationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM verify_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list verification logs: %w", err)
	}
	defer rows.Close()

	var out []domain.VerificationLog
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification log: %w", err)
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

// UpdateStatus moves a log to the given status, enforcing the
// transition table under a row lock.
func (r *VerificationLogRepo) UpdateStatus(ctx context.Context, jobID string, status domain.LogStatus, message string) (*domain.VerificationLog, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback()

	current, err := lockLog(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(status) {
		return nil, verification.ErrInvalidTransition
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE verify_logs SET status = $1, message = $2 WHERE job_id = $3
	`, status, message, jobID)
	if err != nil {
		return nil, fmt.Errorf("update log status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}

	current.Status = status
	current.Message = message
	return current, nil
}

// ApplyResults records final counts and moves the log to VERIFIED_LIST
// in one transaction.
func (r *VerificationLogRepo) ApplyResults(ctx context.Context, jobID string, counts domain.ResultCounts, message string) (*domain.VerificationLog, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply results: %w", err)
	}
	defer tx.Rollback()

	current, err := lockLog(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(domain.LogVerifiedList) {
		return nil, verification.ErrInvalidTransition
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE verify_logs
		SET status = $1, message = $2, deliverable = $3, undeliverable = $4,
		    unknown = $5, accept_all = $6, total_emails = $7, no_of_credits = $7,
		    credits_kind = $8
		WHERE job_id = $9
	`, domain.LogVerifiedList, message, counts.Deliverable, counts.Undeliverable,
		counts.Unknown, counts.AcceptAll, counts.Total, domain.CreditsConsumed, jobID)
	if err != nil {
		return nil, fmt.Errorf("apply results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit results: %w", err)
	}

	current.Status = domain.LogVerifiedList
	current.Message = message
	current.Deliverable = counts.Deliverable
	current.Undeliverable = counts.Undeliverable
	current.Unknown = counts.Unknown
	current.AcceptAll = counts.AcceptAll
	current.TotalEmails = counts.Total
	current.NoOfCredits = counts.Total
	current.CreditsKind = domain.CreditsConsumed
	return current, nil
}

// DeleteByJobID removes the row and returns it, so a failed provider
// delete can re-insert it.
func (r *VerificationLogRepo) DeleteByJobID(ctx context.Context, jobID string) (*domain.VerificationLog, error) {
	entry, err := scanLog(r.db.QueryRowContext(ctx, `
		DELETE FROM verify_logs
		WHERE job_id = $1
		RETURNING `+logColumns+`
	`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete verification log: %w", err)
	}
	return entry, nil
}

func lockLog(ctx context.Context, tx *sql.Tx, jobID string) (*domain.VerificationLog, error) {
	entry, err := scanLog(tx.QueryRowContext(ctx, `
		SELECT `+logColumns+`
		FROM verify_logs
		WHERE job_id = $1
		FOR UPDATE
	`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock verification log: %w", err)
	}
	return entry, nil
}
