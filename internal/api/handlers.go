package api

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/ignite/verifyhub/internal/bouncify"
	"github.com/ignite/verifyhub/internal/config"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/pkg/httputil"
	"github.com/ignite/verifyhub/internal/pkg/logger"
	"github.com/ignite/verifyhub/internal/service/credits"
	"github.com/ignite/verifyhub/internal/service/verification"
	"github.com/ignite/verifyhub/internal/watcher"
)

// Handlers holds the HTTP handlers for the verification API.
type Handlers struct {
	verify  *verification.Service
	credits *credits.Service
	watcher *watcher.Watcher
	upload  config.UploadConfig
}

func NewHandlers(verify *verification.Service, creditSvc *credits.Service, w *watcher.Watcher, upload config.UploadConfig) *Handlers {
	return &Handlers{verify: verify, credits: creditSvc, watcher: w, upload: upload}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VerifySingle checks one email address and consumes one credit.
// POST /api/email-verification/single {"email": "..."}
func (h *Handlers) VerifySingle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	entry, err := h.verify.VerifySingle(r.Context(), UserID(r.Context()), req.Email)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}
	httputil.Success(w, entry.Message, entry)
}

// BulkUpload accepts a multipart CSV and submits it to the provider.
// POST /api/email-verification/bulk-upload (field "csv_file", optional
// "auto_verify").
func (h *Handlers) BulkUpload(w http.ResponseWriter, r *http.Request) {
	// Leave headroom above the CSV limit for multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(h.upload.MaxBytes); err != nil {
		httputil.BadRequest(w, "could not parse upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("csv_file")
	if err != nil {
		httputil.BadRequest(w, "missing csv_file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.InternalError(w, "could not read upload", err)
		return
	}

	autoVerify, _ := strconv.ParseBool(r.FormValue("auto_verify"))

	result, err := h.verify.Upload(r.Context(), UserID(r.Context()),
		data, header.Filename, uploadContentType(header), autoVerify)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	if autoVerify {
		h.watcher.Watch(context.WithoutCancel(r.Context()), result.Submit.JobID)
	}
	httputil.Success(w, result.Submit.Message, result)
}

func uploadContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "text/csv"
}

// BulkStart begins verification of an uploaded list and attaches the
// job watcher. GET /api/email-verification/bulk/start?job_id=...
func (h *Handlers) BulkStart(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")

	entry, err := h.verify.Start(r.Context(), jobID)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	h.watcher.Watch(context.WithoutCancel(r.Context()), jobID)
	httputil.Success(w, entry.Message, entry)
}

// BulkStatus returns the provider's progress for a job.
// GET /api/email-verification/bulk/status?job_id=...
func (h *Handlers) BulkStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")

	status, err := h.verify.CheckStatus(r.Context(), jobID)
	if err != nil {
		if status != nil && !errors.Is(err, verification.ErrNotFound) {
			// Job finished but we could not record it; the client can retry.
			logger.Warn("status served without persistence", "job_id", jobID, "error", err.Error())
			httputil.Success(w, "Verification status fetched", status)
			return
		}
		h.writeVerifyError(w, err)
		return
	}
	httputil.Success(w, "Verification status fetched", status)
}

// BulkDownload streams the filtered result CSV from the provider.
// POST /api/email-verification/bulk/download {"jobId": "...",
// "selectedOption": "deliverable"|"undeliverable"|"all"}
func (h *Handlers) BulkDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID          string `json:"jobId"`
		SelectedOption string `json:"selectedOption"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	body, filename, err := h.verify.Download(r.Context(), req.JobID, req.SelectedOption)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := io.Copy(w, body); err != nil {
		logger.Warn("download stream interrupted", "job_id", req.JobID, "error", err.Error())
	}
}

// BulkDelete removes a verified list locally and at the provider.
// DELETE /api/email-verification/bulk-list?job_id=...
func (h *Handlers) BulkDelete(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")

	h.watcher.Stop(jobID)
	entry, err := h.verify.Delete(r.Context(), jobID)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}
	httputil.Success(w, "Email list deleted successfully", entry)
}

// BulkArchive streams an archived result CSV.
// GET /api/email-verification/bulk/archive?job_id=...
func (h *Handlers) BulkArchive(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")

	body, err := h.verify.OpenArchive(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrArchiveDisabled):
			httputil.NotFound(w, "result archive is not enabled")
		case errors.Is(err, fs.ErrNotExist):
			httputil.NotFound(w, "no archived results for this job")
		case errors.Is(err, verification.ErrInvalidJobID):
			httputil.BadRequest(w, "job_id is required")
		default:
			httputil.InternalError(w, "could not open archive", err)
		}
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results_`+jobID+`.csv"`)
	if _, err := io.Copy(w, body); err != nil {
		logger.Warn("archive stream interrupted", "job_id", jobID, "error", err.Error())
	}
}

// Logs returns the caller's verification history, newest first.
// GET /api/email-verification/logs
func (h *Handlers) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.verify.Logs(r.Context(), UserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, "could not load verification logs", err)
		return
	}
	if logs == nil {
		logs = []domain.VerificationLog{}
	}
	httputil.Success(w, "Verification logs fetched", logs)
}

// Credits syncs the ledger with the provider balance and returns it.
// GET /api/email-verification/credits
func (h *Handlers) Credits(w http.ResponseWriter, r *http.Request) {
	summary, err := h.credits.Sync(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeCreditsError(w, err)
		return
	}
	httputil.Success(w, "Credits fetched", summary)
}

// AllotCredits replaces the caller's total credit allotment.
// PATCH /api/email-verification/credits {"credit_allot": 500}
func (h *Handlers) AllotCredits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreditAllot int `json:"credit_allot"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	summary, err := h.credits.Allot(r.Context(), UserID(r.Context()), req.CreditAllot)
	if err != nil {
		h.writeCreditsError(w, err)
		return
	}
	httputil.Success(w, "Credits updated", summary)
}

func (h *Handlers) writeVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verification.ErrNoFile):
		httputil.BadRequest(w, "no file uploaded")
	case errors.Is(err, verification.ErrFileTooLarge):
		httputil.Error(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
	case errors.Is(err, verification.ErrBadContentType):
		httputil.Error(w, http.StatusUnsupportedMediaType, "only CSV uploads are accepted")
	case errors.Is(err, verification.ErrInvalidEmail):
		httputil.BadRequest(w, "invalid email address")
	case errors.Is(err, verification.ErrInvalidJobID):
		httputil.BadRequest(w, "job_id is required")
	case errors.Is(err, verification.ErrNotFound):
		httputil.NotFound(w, "verification job not found")
	case errors.Is(err, verification.ErrInvalidTransition):
		httputil.Error(w, http.StatusConflict, "job is not in a state that allows this operation")
	case errors.Is(err, credits.ErrInsufficientCredits):
		httputil.BadRequest(w, "insufficient credits")
	default:
		var provErr *bouncify.Error
		if errors.As(err, &provErr) {
			httputil.Error(w, http.StatusBadGateway, "verification provider error: "+provErr.Message)
			return
		}
		httputil.InternalError(w, "verification failed", err)
	}
}

func (h *Handlers) writeCreditsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credits.ErrInvalidAmount):
		httputil.BadRequest(w, "credit amount must be positive")
	case errors.Is(err, credits.ErrLockBusy):
		httputil.Error(w, http.StatusConflict, "a credit sync is already running, try again")
	case errors.Is(err, credits.ErrNotFound):
		httputil.NotFound(w, "no credit ledger for this user")
	default:
		httputil.InternalError(w, "credit operation failed", err)
	}
}
