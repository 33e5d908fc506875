package bouncify

// VerifyResult is the provider's response to a single-address check.
// Result is one of "deliverable", "undeliverable", "unknown".
type VerifyResult struct {
	Email      string `json:"email"`
	Result     string `json:"result"`
	AcceptAll  int    `json:"accept_all"`
	Role       int    `json:"role"`
	FreeEmail  int    `json:"free_email"`
	Disposable int    `json:"disposable"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
}

// Result classifications returned by the provider.
const (
	ResultDeliverable   = "deliverable"
	ResultUndeliverable = "undeliverable"
	ResultUnknown       = "unknown"
)

// BulkSubmitResult is returned when a CSV list is uploaded.
type BulkSubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// CategoryCounts is the per-category breakdown of a bulk job.
type CategoryCounts struct {
	Deliverable   int `json:"deliverable"`
	Undeliverable int `json:"undeliverable"`
	AcceptAll     int `json:"accept_all"`
	Unknown       int `json:"unknown"`
}

// JobStatusResult is the provider's view of a bulk job.
// Known Status values: "ready" (uploaded, not started), "verifying",
// "completed".
type JobStatusResult struct {
	JobID    string         `json:"job_id"`
	Status   string         `json:"status"`
	Total    int            `json:"total"`
	Verified int            `json:"verified"`
	Pending  int            `json:"pending"`
	Results  CategoryCounts `json:"results"`
}

// Job status values observed from the provider.
const (
	JobStatusReady     = "ready"
	JobStatusVerifying = "verifying"
	JobStatusCompleted = "completed"
)

// Complete reports whether the job has finished. The explicit status
// field is authoritative; when the provider omits it we fall back to
// count equality (total == verified on a non-empty job).
func (j *JobStatusResult) Complete() bool {
	if j.Status != "" {
		return j.Status == JobStatusCompleted
	}
	return j.Total > 0 && j.Total == j.Verified
}

// InFlight reports whether the job is in a state worth polling again.
func (j *JobStatusResult) InFlight() bool {
	switch j.Status {
	case JobStatusReady, JobStatusVerifying, "":
		return !j.Complete()
	}
	return false
}

// CreditsInfo is the account credit snapshot from the provider.
type CreditsInfo struct {
	CreditsRemaining int `json:"credits_remaining"`
	CreditsUsed      int `json:"credits_used"`
}

// creditsInfoEnvelope unwraps GET /info responses.
type creditsInfoEnvelope struct {
	CreditsInfo CreditsInfo `json:"credits_info"`
}

// Download filter categories accepted by the provider.
var AllCategories = []string{"deliverable", "undeliverable", "accept_all", "unknown"}
