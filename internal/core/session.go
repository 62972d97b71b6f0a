package core

// session.go implements the operator-facing import lifecycle.
//
// State machine:
//
//	idle -> parsing -> validated -> submitting -> completed
//	          |            |             |
//	          v            v             v
//	        failed       idle          failed (accepted set kept, retry allowed)
//
// Parsing and submission run outside the lock. Every Load or Reset bumps an
// attempt counter; a result that comes back for an older attempt, or after
// Close, is discarded and never overwrites newer state.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SessionOptions wires an ImportSession to its collaborators.
type SessionOptions struct {
	Parser      TableParser
	Creator     BatchCreator
	Validator   *BatchValidator
	Logger      *slog.Logger
	ReportLimit int // Errors shown in snapshots; 0 means DefaultReportLimit
	PreviewRows int // Accepted rows included in snapshots; 0 means all
}

// ImportSession holds one operator's import of one kind.
// All methods are safe for concurrent use.
type ImportSession struct {
	id        string
	schema    *TargetSchema
	parser    TableParser
	creator   BatchCreator
	validator *BatchValidator
	logger    *slog.Logger

	reportLimit int
	previewRows int

	mu        sync.Mutex
	state     SessionState
	attempt   uint64
	closed    bool
	fileName  string
	result    *BatchValidationResult
	selection map[int]bool // nil selects every accepted row
	batchCtx  map[string]string
	outcome   *SubmissionOutcome
	err       error
	updatedAt time.Time
}

// NewImportSession creates an idle session.
func NewImportSession(id string, schema *TargetSchema, opts SessionOptions) *ImportSession {
	if opts.Validator == nil {
		opts.Validator = NewBatchValidator(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReportLimit == 0 {
		opts.ReportLimit = DefaultReportLimit
	}
	return &ImportSession{
		id:          id,
		schema:      schema,
		parser:      opts.Parser,
		creator:     opts.Creator,
		validator:   opts.Validator,
		logger:      opts.Logger.With("session_id", id, "kind", schema.Kind),
		reportLimit: opts.ReportLimit,
		previewRows: opts.PreviewRows,
		state:       StateIdle,
		batchCtx:    make(map[string]string),
		updatedAt:   time.Now(),
	}
}

// ID returns the session identifier.
func (s *ImportSession) ID() string { return s.id }

// Schema returns the session's import kind.
func (s *ImportSession) Schema() *TargetSchema { return s.schema }

// State returns the current lifecycle state.
func (s *ImportSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UpdatedAt returns the time of the last state change.
func (s *ImportSession) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Result returns the current validation result, or nil before a file is loaded.
func (s *ImportSession) Result() *BatchValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Load parses and validates a file, replacing any previous file.
// overrides pins fields to column indices and may be nil.
//
// Parse, empty-file and missing-column errors move the session to failed
// and are returned. For a missing column the result holding the batch
// errors is returned alongside the error.
func (s *ImportSession) Load(ctx context.Context, fileName string, data []byte, overrides map[string]int) (*BatchValidationResult, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submission in progress", ErrInvalidState)
	}
	s.attempt++
	attempt := s.attempt
	s.clearLocked()
	s.fileName = fileName
	s.transitionLocked(StateParsing)
	s.mu.Unlock()

	log := s.logger.With("attempt", attempt, "file", fileName)
	log.Info("import parsing started", "bytes", len(data))

	var result *BatchValidationResult
	table, err := s.parser.Parse(ctx, fileName, data)
	if err == nil {
		result, err = s.validator.ValidateWithOverrides(table, s.schema, overrides)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || attempt != s.attempt {
		log.Warn("discarding stale validation result", "current_attempt", s.attempt)
		return nil, ErrStaleAttempt
	}

	if err != nil {
		s.result = result
		s.err = err
		s.transitionLocked(StateFailed)
		log.Warn("import validation failed", "error", err)
		return result, err
	}

	s.result = result
	s.transitionLocked(StateValidated)
	log.Info("import validated",
		"total_rows", result.TotalRows,
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
		"batch_errors", len(result.BatchErrors),
	)
	return result, nil
}

// Reset discards the loaded file and returns to idle. Batch context is kept.
// Refused while a submission is in flight.
func (s *ImportSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if s.state == StateSubmitting {
		return fmt.Errorf("%w: submission in progress", ErrInvalidState)
	}
	s.attempt++
	s.clearLocked()
	s.transitionLocked(StateIdle)
	s.logger.Info("import reset", "attempt", s.attempt)
	return nil
}

// SetBatchContext sets operator-chosen values that apply to every record,
// such as the department or exam type. An empty value clears the key.
// Unknown keys are rejected with ErrUnknownContextField.
func (s *ImportSession) SetBatchContext(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	switch s.state {
	case StateSubmitting, StateCompleted:
		return fmt.Errorf("%w: cannot change batch context while %s", ErrInvalidState, s.state)
	}
	for _, key := range sortedKeys(values) {
		if _, ok := s.schema.contextField(key); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownContextField, key)
		}
	}
	for key, value := range values {
		if value == "" {
			delete(s.batchCtx, key)
			continue
		}
		s.batchCtx[key] = value
	}
	s.updatedAt = time.Now()
	return nil
}

// Select narrows the accepted set to the given source row numbers.
// An empty list selects every accepted row.
func (s *ImportSession) Select(rowNumbers []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if !s.submittableLocked() {
		return fmt.Errorf("%w: nothing to select from while %s", ErrInvalidState, s.state)
	}
	if len(rowNumbers) == 0 {
		s.selection = nil
		s.updatedAt = time.Now()
		return nil
	}

	accepted := make(map[int]bool, len(s.result.Accepted))
	for _, row := range s.result.Accepted {
		accepted[row.SourceRowNumber] = true
	}
	sel := make(map[int]bool, len(rowNumbers))
	for _, n := range rowNumbers {
		if !accepted[n] {
			return fmt.Errorf("%w: row %d", ErrInvalidRow, n)
		}
		sel[n] = true
	}
	s.selection = sel
	s.updatedAt = time.Now()
	return nil
}

// Submit sends the selected accepted rows to the batch-create collaborator
// and reconciles the response.
//
// A transport failure moves the session to failed and keeps the accepted
// set so the operator can retry. A response in which nothing was created
// also ends in failed, with the outcome attached.
func (s *ImportSession) Submit(ctx context.Context) (*SubmissionOutcome, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.state != StateValidated && s.state != StateFailed {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot submit while %s", ErrInvalidState, state)
	}
	submitted := s.selectedLocked()
	if len(submitted) == 0 {
		s.mu.Unlock()
		return nil, ErrNothingToSubmit
	}
	if missing := s.missingContextLocked(); len(missing) > 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMissingBatchContext, joinOr(missing))
	}

	req := BatchRequest{
		Kind:    s.schema.Kind,
		Records: make([]Record, len(submitted)),
		Context: make(map[string]string, len(s.batchCtx)),
	}
	for i, row := range submitted {
		req.Records[i] = s.schema.BuildRecord(row)
	}
	for k, v := range s.batchCtx {
		req.Context[k] = v
	}
	attempt := s.attempt
	s.err = nil
	s.outcome = nil
	s.transitionLocked(StateSubmitting)
	s.mu.Unlock()

	log := s.logger.With("attempt", attempt)
	log.Info("batch submission started", "records", len(submitted))

	// Submission is not cancellable once started.
	resp, err := s.creator.CreateMany(context.WithoutCancel(ctx), req)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || attempt != s.attempt {
		log.Warn("discarding submission result for abandoned session")
		return nil, ErrStaleAttempt
	}

	if err != nil {
		if !errors.Is(err, ErrSubmissionTransport) {
			err = fmt.Errorf("%w: %w", ErrSubmissionTransport, err)
		}
		s.err = err
		s.transitionLocked(StateFailed)
		log.Error("batch submission failed", "error", err)
		return nil, err
	}

	outcome := Reconcile(resp, submitted, s.schema, log)
	s.outcome = &outcome
	if outcome.Status() == OutcomeFailed {
		s.transitionLocked(StateFailed)
	} else {
		s.transitionLocked(StateCompleted)
	}
	log.Info("batch submission finished",
		"status", outcome.Status(),
		"created", outcome.CreatedCount,
		"failed", outcome.FailedCount,
	)
	return &outcome, nil
}

// Close invalidates the session. Results still in flight are discarded.
func (s *ImportSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.updatedAt = time.Now()
	s.logger.Info("import session closed", "state", s.state, "attempt", s.attempt)
}

// Snapshot returns a consistent view of the session for display.
func (s *ImportSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:        s.id,
		Kind:      s.schema.Kind,
		State:     s.state,
		Attempt:   s.attempt,
		FileName:  s.fileName,
		UpdatedAt: s.updatedAt,
	}
	if len(s.batchCtx) > 0 {
		snap.BatchContext = make(map[string]string, len(s.batchCtx))
		for k, v := range s.batchCtx {
			snap.BatchContext[k] = v
		}
	}
	if r := s.result; r != nil {
		snap.Columns = r.Mapping.Assignments()
		snap.Summary = &ValidationSummary{
			TotalRows:    r.TotalRows,
			Accepted:     len(r.Accepted),
			Rejected:     len(r.Rejected),
			Selected:     len(s.selectedLocked()),
			ErrorCount:   r.ErrorCount(),
			OverflowRows: r.OverflowCount(),
		}
		snap.Preview = r.Accepted
		if s.previewRows > 0 && len(snap.Preview) > s.previewRows {
			snap.Preview = snap.Preview[:s.previewRows]
		}
		snap.Rejected = r.Rejected
		snap.Report = r.Report(s.reportLimit)
	}
	if s.selection != nil {
		snap.Selection = make([]int, 0, len(s.selection))
		for n := range s.selection {
			snap.Selection = append(snap.Selection, n)
		}
		sort.Ints(snap.Selection)
	}
	if s.outcome != nil {
		o := *s.outcome
		snap.Outcome = &o
		snap.Status = o.Status()
	}
	if s.err != nil {
		msg := MapError(s.err)
		snap.Error = &msg
	} else if msg, ok := OutcomeMessage(s.result, s.outcome); ok {
		snap.Notice = &msg
	}
	return snap
}

func (s *ImportSession) checkOpenLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// submittableLocked reports whether an accepted set is available. Failed
// sessions keep it after a transport error or an all-failed response.
func (s *ImportSession) submittableLocked() bool {
	switch s.state {
	case StateValidated, StateFailed:
		return s.result != nil && len(s.result.Accepted) > 0
	}
	return false
}

func (s *ImportSession) selectedLocked() []NormalizedRow {
	if !s.submittableLocked() {
		return nil
	}
	if s.selection == nil {
		return s.result.Accepted
	}
	rows := make([]NormalizedRow, 0, len(s.selection))
	for _, row := range s.result.Accepted {
		if s.selection[row.SourceRowNumber] {
			rows = append(rows, row)
		}
	}
	return rows
}

func (s *ImportSession) missingContextLocked() []string {
	var missing []string
	for _, c := range s.schema.Context {
		if c.Required && s.batchCtx[c.Name] == "" {
			missing = append(missing, c.Label)
		}
	}
	return missing
}

func (s *ImportSession) clearLocked() {
	s.fileName = ""
	s.result = nil
	s.selection = nil
	s.outcome = nil
	s.err = nil
}

func (s *ImportSession) transitionLocked(to SessionState) {
	if s.state != to {
		s.logger.Debug("import state changed", "from", s.state, "to", to, "attempt", s.attempt)
	}
	s.state = to
	s.updatedAt = time.Now()
}
