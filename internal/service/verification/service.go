package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/verifyhub/internal/bouncify"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/pkg/logger"
)

// Provider abstracts the external verification API. *bouncify.Client is
// the production implementation.
type Provider interface {
	VerifyEmail(ctx context.Context, email string) (*bouncify.VerifyResult, error)
	SubmitBulk(ctx context.Context, fileData []byte, filename string, autoVerify bool) (*bouncify.BulkSubmitResult, error)
	JobStatus(ctx context.Context, jobID string) (*bouncify.JobStatusResult, error)
	StartJob(ctx context.Context, jobID string) (string, error)
	DeleteJob(ctx context.Context, jobID string) error
	DownloadResults(ctx context.Context, jobID string, categories []string) (io.ReadCloser, string, error)
}

// Archive persists completed result CSVs. Implementations return
// fs.ErrNotExist-compatible errors for missing keys.
type Archive interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Limits bounds CSV uploads.
type Limits struct {
	MaxUploadBytes int64
	AllowedTypes   []string
}

// DefaultLimits matches the product constraint of 10MB CSV uploads.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes: 10 << 20,
		AllowedTypes: []string{
			"text/csv", "application/csv", "application/vnd.ms-excel", "text/plain",
		},
	}
}

// Service implements the verification job lifecycle. All public methods
// are safe for concurrent use if the underlying repository is.
type Service struct {
	provider Provider
	logs     LogRepository
	ledger   Ledger
	archive  Archive
	limits   Limits

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a verification service. archive may be nil, which
// disables result archiving.
func NewService(provider Provider, logs LogRepository, ledger Ledger, archive Archive, limits Limits) *Service {
	if limits.MaxUploadBytes == 0 {
		limits = DefaultLimits()
	}
	return &Service{
		provider: provider,
		logs:     logs,
		ledger:   ledger,
		archive:  archive,
		limits:   limits,
		now:      time.Now,
	}
}

// UploadResult pairs the provider's job info with the local log entry
// created for it.
type UploadResult struct {
	Submit *bouncify.BulkSubmitResult `json:"job"`
	Log    *domain.VerificationLog    `json:"log"`
}

// Upload validates a CSV upload and submits it to the provider. The log
// entry is created only after a successful submission, so a provider
// failure leaves no local state. A submission that succeeds but whose
// log insert fails is surfaced as an error carrying the job id, so the
// orphaned provider job is at least visible to the caller.
func (s *Service) Upload(ctx context.Context, userID string, fileData []byte, filename, contentType string, autoVerify bool) (*UploadResult, error) {
	if len(fileData) == 0 {
		return nil, ErrNoFile
	}
	if int64(len(fileData)) > s.limits.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if !s.contentTypeAllowed(contentType) {
		return nil, ErrBadContentType
	}

	// Suffix the name with a timestamp so re-uploads of the same file
	// stay distinguishable, locally and on the provider side.
	sourceName := fmt.Sprintf("%s-%d", filename, s.now().UnixMilli())

	submit, err := s.provider.SubmitBulk(ctx, fileData, sourceName, autoVerify)
	if err != nil {
		return nil, err
	}

	entry := &domain.VerificationLog{
		ID:          uuid.New().String(),
		UserID:      userID,
		CreatedAt:   s.now().UTC(),
		Message:     submit.Message,
		Status:      domain.LogUnprocessed,
		CreditsKind: domain.CreditsPending,
		SourceType:  domain.SourceCSV,
		SourceName:  sourceName,
		JobID:       submit.JobID,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		// The provider job exists but we have no record of it.
		logger.Error("orphaned provider job: log create failed after submit",
			"job_id", submit.JobID, "error", err.Error())
		return nil, fmt.Errorf("recording upload for job %s: %w", submit.JobID, err)
	}

	return &UploadResult{Submit: submit, Log: entry}, nil
}

func (s *Service) contentTypeAllowed(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	for _, allowed := range s.limits.AllowedTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// Start asks the provider to begin verifying an uploaded list and moves
// the log to PROCESSING. A provider failure marks the log FAILED on a
// best-effort basis before the error is returned.
func (s *Service) Start(ctx context.Context, jobID string) (*domain.VerificationLog, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrInvalidJobID
	}

	msg, err := s.provider.StartJob(ctx, jobID)
	if err != nil {
		if _, markErr := s.logs.UpdateStatus(ctx, jobID, domain.LogFailed, safeProviderMessage(err)); markErr != nil {
			logger.Warn("could not mark log failed after start error",
				"job_id", jobID, "error", markErr.Error())
		}
		return nil, err
	}

	if msg == "" {
		msg = "Email verification started"
	}
	return s.logs.UpdateStatus(ctx, jobID, domain.LogProcessing, msg)
}

// CheckStatus fetches the provider's view of a bulk job. When the job is
// complete the log is transitioned to VERIFIED_LIST with the final
// counts; a persistence failure there is logged and reported in the
// returned error while the provider payload is still returned, so the
// caller can distinguish "job done" from "job done but not recorded".
func (s *Service) CheckStatus(ctx context.Context, jobID string) (*bouncify.JobStatusResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrInvalidJobID
	}

	status, err := s.provider.JobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !status.Complete() {
		return status, nil
	}

	entry, err := s.logs.GetByJobID(ctx, jobID)
	if err != nil {
		return status, err
	}
	if entry.Status == domain.LogVerifiedList {
		// A concurrent poll already recorded completion.
		return status, nil
	}

	counts := domain.ResultCounts{
		Deliverable:   status.Results.Deliverable,
		Undeliverable: status.Results.Undeliverable,
		Unknown:       status.Results.Unknown,
		AcceptAll:     status.Results.AcceptAll,
		Total:         status.Total,
	}
	if _, err := s.logs.ApplyResults(ctx, jobID, counts, "Verification Successful"); err != nil {
		logger.Error("completion not persisted", "job_id", jobID, "error", err.Error())
		return status, fmt.Errorf("persisting completion for job %s: %w", jobID, err)
	}
	return status, nil
}

// MarkFailed transitions a bulk log to FAILED with the given message.
// Used by the job watcher when a job lands in an unexpected state.
func (s *Service) MarkFailed(ctx context.Context, jobID, message string) error {
	_, err := s.logs.UpdateStatus(ctx, jobID, domain.LogFailed, message)
	return err
}

// Download streams the result CSV for a bulk job. selectedOption maps to
// provider category filters: "deliverable" and "undeliverable" narrow
// the download, anything else fetches all four categories.
func (s *Service) Download(ctx context.Context, jobID, selectedOption string) (io.ReadCloser, string, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, "", ErrInvalidJobID
	}

	var categories []string
	switch selectedOption {
	case "deliverable":
		categories = []string{"deliverable"}
	case "undeliverable":
		categories = []string{"undeliverable"}
	default:
		categories = bouncify.AllCategories
	}

	return s.provider.DownloadResults(ctx, jobID, categories)
}

// VerifySingle checks one address with the provider, then consumes one
// credit and records the result in a single atomic step: the ledger
// decrement and the log insert happen in the same transaction, so
// credits can never be lost to a half-completed write.
func (s *Service) VerifySingle(ctx context.Context, userID, email string) (*domain.VerificationLog, error) {
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}

	result, err := s.provider.VerifyEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	message := result.Message
	if message == "" {
		message = "Email verification successful"
	}
	entry := &domain.VerificationLog{
		ID:          uuid.New().String(),
		UserID:      userID,
		CreatedAt:   s.now().UTC(),
		Message:     message,
		Status:      domain.LogVerifiedEmail,
		CreditsKind: domain.CreditsConsumed,
		NoOfCredits: 1,
		SourceType:  domain.SourceEmail,
		SourceName:  email,
		AcceptAll:   result.AcceptAll,
		TotalEmails: 1,
	}
	switch result.Result {
	case bouncify.ResultDeliverable:
		entry.Deliverable = 1
	case bouncify.ResultUndeliverable:
		entry.Undeliverable = 1
	default:
		entry.Unknown = 1
	}

	if err := s.ledger.ConsumeAndLog(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes a bulk list locally and at the provider. The local row
// goes first; if the provider delete then fails, the row is restored so
// the two sides stay consistent. Deleting an already-removed job returns
// ErrNotFound.
func (s *Service) Delete(ctx context.Context, jobID string) (*domain.VerificationLog, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrInvalidJobID
	}

	deleted, err := s.logs.DeleteByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.provider.DeleteJob(ctx, jobID); err != nil {
		if restoreErr := s.logs.Create(ctx, deleted); restoreErr != nil {
			logger.Error("provider delete failed and log restore failed; local and remote state diverged",
				"job_id", jobID, "delete_error", err.Error(), "restore_error", restoreErr.Error())
		}
		return nil, err
	}
	return deleted, nil
}

// Logs returns the caller's verification history, newest first.
func (s *Service) Logs(ctx context.Context, userID string) ([]domain.VerificationLog, error) {
	return s.logs.ListByUser(ctx, userID)
}

// ArchiveResults downloads the full result set of a completed job and
// stores it in the archive. Returns the archive key.
func (s *Service) ArchiveResults(ctx context.Context, jobID string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}

	rc, _, err := s.provider.DownloadResults(ctx, jobID, bouncify.AllCategories)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	key := archiveKey(jobID)
	if err := s.archive.Put(ctx, key, rc); err != nil {
		return "", fmt.Errorf("archiving results for job %s: %w", jobID, err)
	}
	return key, nil
}

// OpenArchive returns the archived result CSV for a job.
func (s *Service) OpenArchive(ctx context.Context, jobID string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.Get(ctx, archiveKey(jobID))
}

func archiveKey(jobID string) string {
	return fmt.Sprintf("results/%s.csv", jobID)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	// Require a dotted domain; mail.ParseAddress accepts "a@b".
	at := strings.LastIndex(email, "@")
	return strings.Contains(email[at+1:], ".")
}

// safeProviderMessage reduces a provider error to a message safe to
// store and show to clients.
func safeProviderMessage(err error) string {
	var provErr *bouncify.Error
	if errors.As(err, &provErr) && provErr.Message != "" {
		return provErr.Message
	}
	return "Failed to start email verification"
}
