package core

// # Error Codes Reference
//
// This file maps errors to operator-facing messages with codes for support
// reference. Operators can quote the code to support staff.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: exceeds the upload size limit
//	          Action: Split the file or remove unused sheets
//	FILE002 - Unreadable file: not a workbook or CSV we can read
//	          Action: Save the file as .xlsx and upload it again
//	FILE003 - Empty file: no data rows after the header
//	          Action: Add at least one row under the header row
//	FILE004 - No file: the request carried no file
//	          Action: Choose a spreadsheet to upload
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Missing column: a required column was not found
//	         Action: Download the template and compare the headers
//	VAL002 - Row errors: some rows failed validation
//	         Action: Fix the listed rows or submit only the valid ones
//	VAL003 - Duplicate: the same identifier appears more than once
//	         Action: Remove the repeated rows
//	VAL004 - Too many rows: only the first rows were processed
//	         Action: Split the file into smaller batches
//	VAL005 - Invalid mapping: a column override is out of range
//	         Action: Pick a column from the uploaded header
//
// # Submission Errors (SUB001-SUB099)
//
//	SUB001 - Transport: the backend could not be reached or refused the batch
//	         Action: Try again; the accepted rows are kept
//	SUB002 - Partial failure: some records were not created
//	         Action: Review the failed rows and resubmit them
//	SUB003 - Missing batch context: department, subject or exam type not chosen
//	         Action: Fill in the batch fields before submitting
//	SUB004 - Nothing to submit: no accepted rows selected
//	         Action: Select at least one valid row
//	SUB005 - Reference data: departments could not be loaded
//	         Action: Try again shortly
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: expired or never existed
//	SES002 - Invalid state: the action is not allowed right now
//	SES003 - Stale attempt: a newer upload replaced this one
//	SES004 - Unknown import kind
//
// # Throttling (UPL002, RATE001)
//
//	UPL002 - System busy: too many files being processed
//	RATE001 - Rate limited: too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the server log,
// which records the technical error next to the request ID.
//
// # Matching
//
// Sentinel errors are matched with errors.Is first, in table order. Errors
// from outside this package fall back to case-insensitive substring patterns.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides operator-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds is checked in order; more specific sentinels come first.
var errorKinds = []errorKind{
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file or remove unused sheets", "FILE001"}},
	{ErrFileUnreadable, UserMessage{"The file could not be read as a spreadsheet", "Save the file as .xlsx and upload it again", "FILE002"}},
	{ErrEmptyFile, UserMessage{"The file has no data rows", "Add at least one row under the header row", "FILE003"}},
	{ErrNoFile, UserMessage{"No file was uploaded", "Choose a spreadsheet to upload", "FILE004"}},
	{ErrMissingRequiredColumn, UserMessage{"A required column is missing", "Download the template and compare the headers", "VAL001"}},
	{ErrBatchTooLarge, UserMessage{"The file has more rows than one import allows", "Split the file into smaller batches", "VAL004"}},
	{ErrInvalidMapping, UserMessage{"The column mapping is invalid", "Pick a column from the uploaded header", "VAL005"}},
	{ErrSubmissionTransport, UserMessage{"The records could not be sent to the server", "Try again; your accepted rows are kept", "SUB001"}},
	{ErrMissingBatchContext, UserMessage{"Batch details are missing", "Fill in the batch fields before submitting", "SUB003"}},
	{ErrUnknownContextField, UserMessage{"Unknown batch field", "Refresh the page and try again", "SUB003"}},
	{ErrNothingToSubmit, UserMessage{"There are no valid rows to submit", "Select at least one valid row", "SUB004"}},
	{ErrReferenceData, UserMessage{"Departments could not be loaded", "Try again shortly", "SUB005"}},
	{ErrSessionNotFound, UserMessage{"Import session not found", "The import may have expired. Please start again", "SES001"}},
	{ErrSessionClosed, UserMessage{"Import session not found", "The import may have expired. Please start again", "SES001"}},
	{ErrInvalidState, UserMessage{"That action is not available right now", "Wait for the current step to finish", "SES002"}},
	{ErrInvalidRow, UserMessage{"The selection includes a row that is not valid", "Select only rows from the accepted list", "SES002"}},
	{ErrStaleAttempt, UserMessage{"A newer upload replaced this one", "Review the latest upload", "SES003"}},
	{ErrUnknownKind, UserMessage{"Unknown import type", "Choose an import type from the list", "SES004"}},
	{ErrTooManyUploads, UserMessage{"Too many files are being processed", "Please wait a moment and try again", "UPL002"}},
}

// errorPattern matches errors that do not wrap a sentinel.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"request body too large", UserMessage{"File exceeds the maximum upload size", "Split the file or remove unused sheets", "FILE001"}},
	{"no such file", UserMessage{"No file was uploaded", "Choose a spreadsheet to upload", "FILE004"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "UPL005"}},
}

// Row-level outcomes are not Go errors but still carry codes in responses.
var (
	RowErrorsMessage      = UserMessage{"Some rows failed validation", "Fix the listed rows or submit only the valid ones", "VAL002"}
	DuplicateRowsMessage  = UserMessage{"The same identifier appears more than once", "Remove the repeated rows", "VAL003"}
	PartialFailureMessage = UserMessage{"Some records were not created", "Review the failed rows and resubmit them", "SUB002"}
)

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to an operator-friendly message.
// Sentinels are matched with errors.Is; anything else falls back to
// substring patterns, then to ERR000.
//
// Example:
//
//	err := fmt.Errorf("%w: Student Number", ErrMissingRequiredColumn)
//	msg := MapError(err)
//	// msg.Code == "VAL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown to the operator.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // Operator-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

// OutcomeMessage describes a validation result or submission outcome that
// needs operator attention, or returns false when there is nothing to report.
func OutcomeMessage(result *BatchValidationResult, outcome *SubmissionOutcome) (UserMessage, bool) {
	if outcome != nil && outcome.Status() == OutcomePartial {
		return PartialFailureMessage, true
	}
	if result == nil {
		return UserMessage{}, false
	}
	if result.Truncated {
		return MapError(ErrBatchTooLarge), true
	}
	for _, row := range result.Rejected {
		for _, e := range row.Errors {
			if strings.Contains(e, ": Duplicate ") {
				return DuplicateRowsMessage, true
			}
		}
	}
	if len(result.Rejected) > 0 {
		return RowErrorsMessage, true
	}
	return UserMessage{}, false
}
