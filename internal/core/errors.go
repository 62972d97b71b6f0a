package core

import "errors"

// File and batch errors. Per-row problems are strings on NormalizedRow and
// never surface as Go errors.
var (
	ErrFileUnreadable        = errors.New("file unreadable")
	ErrEmptyFile             = errors.New("file has no data rows")
	ErrFileTooLarge          = errors.New("file too large")
	ErrNoFile                = errors.New("no file provided")
	ErrMissingRequiredColumn = errors.New("missing required column")
	ErrBatchTooLarge         = errors.New("too many rows")
	ErrInvalidMapping        = errors.New("invalid column mapping")
	ErrUnknownKind           = errors.New("unknown import kind")
)

// Submission errors.
var (
	ErrSubmissionTransport = errors.New("batch submission failed")
	ErrMissingBatchContext = errors.New("missing batch context")
	ErrUnknownContextField = errors.New("unknown batch context field")
	ErrNothingToSubmit     = errors.New("nothing to submit")
	ErrReferenceData       = errors.New("reference data unavailable")
)

// Session errors.
var (
	ErrInvalidState    = errors.New("invalid session state")
	ErrStaleAttempt    = errors.New("stale import attempt")
	ErrSessionNotFound = errors.New("import session not found")
	ErrSessionClosed   = errors.New("import session closed")
	ErrInvalidRow      = errors.New("row is not in the accepted set")
	ErrTooManyUploads  = errors.New("too many concurrent uploads")
)
