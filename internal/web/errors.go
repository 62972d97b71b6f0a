package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged server-side with the request ID and its technical
// detail, and returned to the client as the coded operator message from
// core.MapError:
//
//	{"error": "...", "message": "...", "action": "...", "code": "VAL001"}

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/acadimport/internal/core"
	"github.com/JonMunkholm/acadimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	// Session is attached when the failing call left a session worth showing,
	// such as a file missing a required column.
	Session *core.SessionSnapshot `json:"session,omitempty"`
}

var errBadRequest = errors.New("bad request")

var badRequestMessage = core.UserMessage{
	Message: "The request could not be understood",
	Action:  "Check the request body and try again",
	Code:    "REQ001",
}

// badRequest wraps a decoding failure so it maps to REQ001 and 400.
func badRequest(err error) error {
	return &core.UserError{Technical: errors.Join(errBadRequest, err), User: badRequestMessage}
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondErrorWithSession(w, r, err, nil)
}

func respondErrorWithSession(w http.ResponseWriter, r *http.Request, err error, snap *core.SessionSnapshot) {
	status := statusFor(err)
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Session: snap,
	})
}

// statusFor picks the HTTP status for an error. Order matters: a transport
// failure may wrap an unknown-kind error and must stay a 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrInvalidMapping):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSubmissionTransport),
		errors.Is(err, core.ErrReferenceData):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionClosed),
		errors.Is(err, core.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrStaleAttempt):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileUnreadable),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrMissingRequiredColumn),
		errors.Is(err, core.ErrBatchTooLarge),
		errors.Is(err, core.ErrMissingBatchContext),
		errors.Is(err, core.ErrUnknownContextField),
		errors.Is(err, core.ErrNothingToSubmit),
		errors.Is(err, core.ErrInvalidRow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v with the given status.
// Encoding errors are only logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a small JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}
