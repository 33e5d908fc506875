package domain

import (
	"time"
)

// LogStatus enumerates the lifecycle states of a verification log entry.
// Bulk jobs move forward only: UNPROCESSED → PROCESSING → VERIFIED_LIST
// or FAILED. Single-email entries are created terminal at VERIFIED_EMAIL.
type LogStatus string

const (
	LogUnprocessed   LogStatus = "UNPROCESSED"
	LogProcessing    LogStatus = "PROCESSING"
	LogVerifiedList  LogStatus = "VERIFIED_LIST"
	LogVerifiedEmail LogStatus = "VERIFIED_EMAIL"
	LogFailed        LogStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected from s.
func (s LogStatus) Terminal() bool {
	switch s {
	case LogVerifiedList, LogVerifiedEmail, LogFailed:
		return true
	}
	return false
}

// CanTransition reports whether a log may move from s to next.
// Transitions are forward-only; terminal states accept nothing.
func (s LogStatus) CanTransition(next LogStatus) bool {
	switch s {
	case LogUnprocessed:
		return next == LogProcessing || next == LogFailed
	case LogProcessing:
		return next == LogVerifiedList || next == LogFailed
	}
	return false
}

// CreditsKind describes how an entry relates to the credit ledger.
type CreditsKind string

const (
	CreditsConsumed    CreditsKind = "CONSUMED"
	CreditsAllotted    CreditsKind = "ALLOTTED"
	CreditsPending     CreditsKind = "PENDING"
	CreditsNotConsumed CreditsKind = "NOT_CONSUMED"
)

// SourceType distinguishes single-address entries from CSV list uploads.
type SourceType string

const (
	SourceEmail SourceType = "EMAIL"
	SourceCSV   SourceType = "CSV"
)

// VerificationLog is one row per verification action: a single address
// check or a bulk CSV job. JobID is unique and non-empty for CSV entries
// and empty for single-email entries.
type VerificationLog struct {
	ID            string      `json:"id" db:"id"`
	UserID        string      `json:"user_id" db:"user_id"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	Message       string      `json:"message" db:"message"`
	Status        LogStatus   `json:"status" db:"status"`
	CreditsKind   CreditsKind `json:"credits" db:"credits_kind"`
	NoOfCredits   int         `json:"no_of_credits" db:"no_of_credits"`
	SourceType    SourceType  `json:"source_type" db:"source_type"`
	SourceName    string      `json:"source_name" db:"source_name"`
	JobID         string      `json:"job_id" db:"job_id"`
	Deliverable   int         `json:"deliverable" db:"deliverable"`
	Undeliverable int         `json:"undeliverable" db:"undeliverable"`
	Unknown       int         `json:"unknown" db:"unknown"`
	AcceptAll     int         `json:"accept_all" db:"accept_all"`
	TotalEmails   int         `json:"total_emails" db:"total_emails"`
}

// ResultCounts holds the final per-category breakdown of a bulk job.
type ResultCounts struct {
	Deliverable   int `json:"deliverable"`
	Undeliverable int `json:"undeliverable"`
	Unknown       int `json:"unknown"`
	AcceptAll     int `json:"accept_all"`
	Total         int `json:"total"`
}

// CreditLedger is the per-user credit record. Consumed is derived as
// allotted minus remaining and never stored. Remaining is floored at
// zero by the database.
type CreditLedger struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	CreditsAllotted  int       `json:"credits_allotted" db:"credits_allotted"`
	CreditsRemaining int       `json:"credits_remaining" db:"credits_remaining"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Consumed returns the derived consumed-credit count.
func (l CreditLedger) Consumed() int {
	return l.CreditsAllotted - l.CreditsRemaining
}

// User owns verification logs and exactly one credit ledger.
type User struct {
	ID        string    `json:"id" db:"id"`
	APIKey    string    `json:"api_key" db:"api_key"`
	SecretKey string    `json:"-" db:"secret_key"`
	Timezone  string    `json:"timezone" db:"timezone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
