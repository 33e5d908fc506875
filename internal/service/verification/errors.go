package verification

import "errors"

// Sentinel errors for the verification service layer.
var (
	ErrNotFound          = errors.New("verification log not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoFile            = errors.New("no file uploaded")
	ErrFileTooLarge      = errors.New("file exceeds the upload size limit")
	ErrBadContentType    = errors.New("unsupported file content type")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidJobID      = errors.New("job id is required")
	ErrArchiveDisabled   = errors.New("results archive is not configured")
)
