package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/service/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logCols = []string{
	"id", "user_id", "created_at", "message", "status", "credits_kind",
	"no_of_credits", "source_type", "source_name", "job_id",
	"deliverable", "undeliverable", "unknown", "accept_all", "total_emails",
}

func logRow(status domain.LogStatus) *sqlmock.Rows {
	return sqlmock.NewRows(logCols).AddRow(
		"log-1", "user-1", time.Now(), "msg", string(status), "PENDING",
		0, "CSV", "list.csv-123", "job-1", 0, 0, 0, 0, 0,
	)
}

func TestVerificationLogCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO verify_logs").
		WithArgs("log-1", "user-1", sqlmock.AnyArg(), "uploaded", "UNPROCESSED",
			"PENDING", 0, "CSV", "list.csv-123", "job-1", 0, 0, 0, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewVerificationLogRepo(db)
	err = repo.Create(context.Background(), &domain.VerificationLog{
		ID: "log-1", UserID: "user-1", CreatedAt: time.Now(),
		Message: "uploaded", Status: domain.LogUnprocessed,
		CreditsKind: domain.CreditsPending, SourceType: domain.SourceCSV,
		SourceName: "list.csv-123", JobID: "job-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationLogGetByJobIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM verify_logs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(logCols))

	repo := NewVerificationLogRepo(db)
	_, err = repo.GetByJobID(context.Background(), "missing")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestVerificationLogUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(logRow(domain.LogUnprocessed))
	mock.ExpectExec("UPDATE verify_logs SET status").
		WithArgs("PROCESSING", "started", "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewVerificationLogRepo(db)
	entry, err := repo.UpdateStatus(context.Background(), "job-1", domain.LogProcessing, "started")
	require.NoError(t, err)
	assert.Equal(t, domain.LogProcessing, entry.Status)
	assert.Equal(t, "started", entry.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationLogUpdateStatusRejectsBackwardTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(logRow(domain.LogVerifiedList))
	mock.ExpectRollback()

	repo := NewVerificationLogRepo(db)
	_, err = repo.UpdateStatus(context.Background(), "job-1", domain.LogProcessing, "restart")
	assert.ErrorIs(t, err, verification.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationLogApplyResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(logRow(domain.LogProcessing))
	mock.ExpectExec("UPDATE verify_logs").
		WithArgs("VERIFIED_LIST", "Verification Successful", 120, 50, 10, 20, 200, "CONSUMED", "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewVerificationLogRepo(db)
	entry, err := repo.ApplyResults(context.Background(), "job-1", domain.ResultCounts{
		Deliverable: 120, Undeliverable: 50, Unknown: 10, AcceptAll: 20, Total: 200,
	}, "Verification Successful")
	require.NoError(t, err)
	assert.Equal(t, domain.LogVerifiedList, entry.Status)
	assert.Equal(t, 200, entry.TotalEmails)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationLogDeleteReturnsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("DELETE FROM verify_logs").
		WithArgs("job-1").
		WillReturnRows(logRow(domain.LogVerifiedList))

	repo := NewVerificationLogRepo(db)
	entry, err := repo.DeleteByJobID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", entry.JobID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationLogListByUserOrdersNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(logCols).
		AddRow("log-2", "user-1", now, "", "VERIFIED_LIST", "CONSUMED", 5, "CSV", "b.csv-2", "job-2", 3, 1, 1, 0, 5).
		AddRow("log-1", "user-1", now.Add(-time.Hour), "", "FAILED", "NOT_CONSUMED", 0, "CSV", "a.csv-1", "job-1", 0, 0, 0, 0, 0)
	mock.ExpectQuery("SELECT (.+) FROM verify_logs").
		WithArgs("user-1").
		WillReturnRows(rows)

	repo := NewVerificationLogRepo(db)
	logs, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "job-2", logs[0].JobID)
	assert.Equal(t, domain.LogFailed, logs[1].Status)
}
