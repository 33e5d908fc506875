package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/service/credits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ledgerCols = []string{"id", "user_id", "credits_allotted", "credits_remaining", "created_at", "updated_at"}

func ledgerRow(allotted, remaining int) *sqlmock.Rows {
	return sqlmock.NewRows(ledgerCols).
		AddRow("ledger-1", "user-1", allotted, remaining, time.Now(), time.Now())
}

func TestCreditLedgerGetScansFullRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM verify_credit_ledgers").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(ledgerCols).
			AddRow("ledger-1", "user-1", 100, 73, created, updated))

	repo := NewCreditLedgerRepo(db)
	ledger, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ledger-1", ledger.ID)
	assert.Equal(t, "user-1", ledger.UserID)
	assert.Equal(t, 100, ledger.CreditsAllotted)
	assert.Equal(t, 73, ledger.CreditsRemaining)
	assert.Equal(t, created, ledger.CreatedAt)
	assert.Equal(t, updated, ledger.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedgerGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM verify_credit_ledgers").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(ledgerCols))

	repo := NewCreditLedgerRepo(db)
	_, err = repo.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, credits.ErrNotFound)
}

func TestCreditLedgerUpsertRemaining(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO verify_credit_ledgers").
		WithArgs(sqlmock.AnyArg(), "user-1", 100, 42).
		WillReturnRows(ledgerRow(100, 42))

	repo := NewCreditLedgerRepo(db)
	ledger, err := repo.UpsertRemaining(context.Background(), "user-1", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, ledger.CreditsRemaining)
	assert.Equal(t, 58, ledger.Consumed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedgerUpsertRemainingFloorsNegative(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO verify_credit_ledgers").
		WithArgs(sqlmock.AnyArg(), "user-1", 100, 0).
		WillReturnRows(ledgerRow(100, 0))

	repo := NewCreditLedgerRepo(db)
	ledger, err := repo.UpsertRemaining(context.Background(), "user-1", -7)
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.CreditsRemaining)
}

func TestCreditLedgerSetAllotted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO verify_credit_ledgers").
		WithArgs(sqlmock.AnyArg(), "user-1", 500).
		WillReturnRows(ledgerRow(500, 30))

	repo := NewCreditLedgerRepo(db)
	ledger, err := repo.SetAllotted(context.Background(), "user-1", 500)
	require.NoError(t, err)
	assert.Equal(t, 500, ledger.CreditsAllotted)
}

func consumedEntry() *domain.VerificationLog {
	return &domain.VerificationLog{
		ID: "log-1", UserID: "user-1", CreatedAt: time.Now(),
		Message: "ok", Status: domain.LogVerifiedEmail,
		CreditsKind: domain.CreditsConsumed, NoOfCredits: 1,
		SourceType: domain.SourceEmail, SourceName: "a@example.com",
		Deliverable: 1, TotalEmails: 1,
	}
}

func TestConsumeAndLogSingleTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verify_credit_ledgers").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO verify_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewCreditLedgerRepo(db)
	err = repo.ConsumeAndLog(context.Background(), consumedEntry())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeAndLogInsufficientCredits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verify_credit_ledgers").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	repo := NewCreditLedgerRepo(db)
	err = repo.ConsumeAndLog(context.Background(), consumedEntry())
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeAndLogCreatesLedgerLazily(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verify_credit_ledgers").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO verify_credit_ledgers").
		WithArgs(sqlmock.AnyArg(), "user-1", 100, 99).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO verify_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewCreditLedgerRepo(db)
	err = repo.ConsumeAndLog(context.Background(), consumedEntry())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeAndLogRollsBackOnLogFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verify_credit_ledgers").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO verify_logs").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	repo := NewCreditLedgerRepo(db)
	err = repo.ConsumeAndLog(context.Background(), consumedEntry())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
