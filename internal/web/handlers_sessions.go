package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/acadimport/internal/core"
	"github.com/JonMunkholm/acadimport/internal/logging"
)

// maxJSONBody bounds context and selection request bodies.
const maxJSONBody = 64 << 10

// multipartOverhead is allowed on top of the file size limit for the form
// boundaries and the mapping field.
const multipartOverhead = 64 << 10

const overflowReason = "Not processed: over the row limit"

type selectionRequest struct {
	Rows []int `json:"rows"`
}

// session resolves {id} or writes the error response.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*core.ImportSession, bool) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.StartSession(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadFile loads a multipart "file" into the session. An optional
// "mapping" field holds a JSON object of field name to column index.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	fileName, data, overrides, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	logging.FromContext(ctx).Info("file received",
		"session_id", sess.ID(),
		"file", fileName,
		"bytes", len(data),
		"overrides", len(overrides),
	)

	result, err := sess.Load(ctx, fileName, data, overrides)
	if err != nil {
		var snap *core.SessionSnapshot
		if result != nil {
			current := sess.Snapshot()
			snap = &current
		}
		respondErrorWithSession(w, r, err, snap)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, map[string]int, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			return "", nil, nil, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return "", nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	defer file.Close()

	if header.Size > maxSize {
		return "", nil, nil, fmt.Errorf("%w: %d bytes, limit is %d", core.ErrFileTooLarge, header.Size, maxSize)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, nil, fmt.Errorf("read upload: %w", err)
	}

	var overrides map[string]int
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return "", nil, nil, fmt.Errorf("%w: %v", core.ErrInvalidMapping, err)
		}
	}
	return header.Filename, data, overrides, nil
}

func (s *Server) handleResetFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Reset(); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleSetContext merges a JSON object of batch context values.
// An empty string clears a value.
func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		respondError(w, r, err)
		return
	}
	if err := sess.SetBatchContext(values); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleSetSelection narrows the submission to {"rows": [...]} source row
// numbers. An empty list selects every accepted row.
func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := sess.Select(req.Rows); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleSubmit sends the selected rows. A partial outcome is a 200 with the
// outcome and a SUB002 notice in the snapshot; a response in which nothing
// was created is a 502 carrying the snapshot.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	outcome, err := sess.Submit(r.Context())
	if err != nil {
		snap := sess.Snapshot()
		respondErrorWithSession(w, r, err, &snap)
		return
	}

	status := http.StatusOK
	if outcome.Status() == core.OutcomeFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, sess.Snapshot())
}

// handleExportRejected streams the rejected rows as CSV: the source row
// number, the joined errors, then the original cells under the original
// headers, so the operator can fix and re-upload them.
func (s *Server) handleExportRejected(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	result := sess.Result()
	if result == nil {
		respondError(w, r, fmt.Errorf("%w: no file loaded", core.ErrInvalidState))
		return
	}

	filename := fmt.Sprintf("%s_rejected_%s.csv", sess.Schema().Kind, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	_ = cw.Write(append([]string{"_row", "_error"}, result.Mapping.Headers...))
	for _, row := range result.Rejected {
		record := make([]string, 0, 2+len(row.Cells))
		reason := strings.Join(row.Errors, "; ")
		if row.Overflow && reason == "" {
			reason = overflowReason
		}
		record = append(record, strconv.Itoa(row.SourceRowNumber), reason)
		record = append(record, row.Cells...)
		_ = cw.Write(record)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("rejected export failed", "session_id", sess.ID(), "error", err)
	}
}
