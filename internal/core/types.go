package core

import (
	"context"
	"sort"
	"time"
)

// CellValue is one untyped spreadsheet cell: string, float64, int or nil.
type CellValue = any

// RuleKind identifies the coercion applied to a cell.
type RuleKind int

const (
	RuleText RuleKind = iota
	RuleEmail
	RulePhone
	RuleIdentifier
	RuleInteger
	RuleGrade
)

// CellRule describes how one cell is coerced and validated.
// Build rules with the constructors in coerce.go rather than by hand.
type CellRule struct {
	Kind       RuleKind
	AllowBlank bool     // Blank cells coerce to nil instead of failing
	MinLen     int      // text and identifier rules
	MaxLen     int      // text rules, 0 means unbounded
	Min, Max   int      // integer rules, inclusive
	Allowed    []string // grade rules, canonical spelling
}

// IsRequired reports whether blank cells are rejected.
func (r CellRule) IsRequired() bool {
	return !r.AllowBlank
}

// DefaultRule supplies a value for a field the operator left blank.
// Defaults are resolved when records are built for submission, never during
// validation, so generated secrets do not appear in previews.
type DefaultRule struct {
	Name    string
	Resolve func() any
}

// Derivation computes a secondary field from a successfully coerced value.
type Derivation struct {
	Field string
	Fn    func(any) any
}

// FieldSpec defines one target field of an import kind.
type FieldSpec struct {
	Name     string   // Canonical field name sent to the backend: "studentNo"
	Label    string   // Operator-facing name used in messages: "Student Number"
	Required bool     // Column must be present in the header
	Aliases  []string // Header fragments that identify the column
	Excludes []string // Header fragments that rule the column out
	Rule     CellRule
	Default  *DefaultRule
	Derive   *Derivation
}

// DisplayName returns the label, or the field name when no label is set.
func (f FieldSpec) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// RowRuleKind identifies a cross-field row rule.
type RowRuleKind int

const (
	RowRuleAtLeastOneOf RowRuleKind = iota
)

// RowRule is a constraint evaluated after every field of a row is coerced.
type RowRule struct {
	Kind   RowRuleKind
	Fields []string
}

// AtLeastOneOf requires at least one of the named fields to be non-blank.
func AtLeastOneOf(fields ...string) RowRule {
	return RowRule{Kind: RowRuleAtLeastOneOf, Fields: fields}
}

// ContextField is a batch-wide value chosen by the operator rather than read
// from the file, such as the department admins are imported into.
type ContextField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// TargetSchema describes one import kind.
type TargetSchema struct {
	Kind            string // Unique key: "admins", "results"
	Label           string // Display name: "Lecturers & Admins"
	Fields          []FieldSpec
	IdentifierField string // Field used for duplicate detection and reconciliation
	RowRules        []RowRule
	Context         []ContextField
	MaxRows         int        // 0 falls back to the validator default
	SampleRows      [][]string // Example rows for downloadable templates
}

// Field returns the spec for a field name.
func (s *TargetSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Identifier returns the spec of the identifier field.
func (s *TargetSchema) Identifier() FieldSpec {
	f, _ := s.Field(s.IdentifierField)
	return f
}

// Columns returns the canonical field names in declaration order.
func (s *TargetSchema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// RequiredContext returns the names of context fields that must be set
// before submission.
func (s *TargetSchema) RequiredContext() []string {
	var names []string
	for _, c := range s.Context {
		if c.Required {
			names = append(names, c.Name)
		}
	}
	return names
}

// contextField looks up a context field by name.
func (s *TargetSchema) contextField(name string) (ContextField, bool) {
	for _, c := range s.Context {
		if c.Name == name {
			return c, true
		}
	}
	return ContextField{}, false
}

// Record is one backend-ready object.
type Record map[string]any

// BuildRecord converts a validated row into a record, resolving named
// defaults for blank fields. Blank fields without a default are omitted.
func (s *TargetSchema) BuildRecord(row NormalizedRow) Record {
	rec := make(Record, len(row.Fields))
	for _, f := range s.Fields {
		v := row.Fields[f.Name]
		if v == nil && f.Default != nil {
			v = f.Default.Resolve()
		}
		if v != nil {
			rec[f.Name] = v
		}
		if f.Derive != nil {
			if d := row.Fields[f.Derive.Field]; d != nil {
				rec[f.Derive.Field] = d
			}
		}
	}
	return rec
}

// RawTable is the parser's view of a spreadsheet: one header row plus data rows.
type RawTable struct {
	Headers []string
	Rows    [][]CellValue
	// HeaderRowNumber is the 1-based sheet row holding the headers.
	// Zero is treated as 1.
	HeaderRowNumber int
}

// RowNumber converts a 0-based data row index to the 1-based sheet row number
// the operator sees in their spreadsheet program.
func (t RawTable) RowNumber(i int) int {
	h := t.HeaderRowNumber
	if h < 1 {
		h = 1
	}
	return h + 1 + i
}

// ColumnMapping is the result of classifying a header row.
type ColumnMapping struct {
	Headers            []string       `json:"headers"`
	Columns            map[int]string `json:"columns"` // column index -> field name
	Fields             map[string]int `json:"fields"`  // field name -> column index
	Unmapped           []int          `json:"unmapped,omitempty"`
	Missing            []string       `json:"missing,omitempty"` // required fields without a column
	Warnings           []string       `json:"warnings,omitempty"`
	IdentifierFallback bool           `json:"identifierFallback,omitempty"`
}

// Column returns the column index mapped to a field.
func (m ColumnMapping) Column(field string) (int, bool) {
	col, ok := m.Fields[field]
	return col, ok
}

// ColumnAssignment is one header with the field it was mapped to, if any.
type ColumnAssignment struct {
	Index  int    `json:"index"`
	Header string `json:"header"`
	Field  string `json:"field,omitempty"`
}

// Assignments lists every header in column order with its mapped field.
func (m ColumnMapping) Assignments() []ColumnAssignment {
	out := make([]ColumnAssignment, len(m.Headers))
	for i, h := range m.Headers {
		out[i] = ColumnAssignment{Index: i, Header: h, Field: m.Columns[i]}
	}
	return out
}

// NormalizedRow is one coerced data row.
type NormalizedRow struct {
	SourceRowNumber int               `json:"sourceRowNumber"`
	Fields          map[string]any    `json:"fields,omitempty"`
	Extras          map[string]string `json:"extras,omitempty"`
	Errors          []string          `json:"errors,omitempty"`
	// Overflow marks rows past the row limit that were never normalized.
	Overflow bool `json:"overflow,omitempty"`
	// Cells is the cleaned text of the source row, kept for exports.
	Cells []string `json:"-"`
}

// Valid reports whether the row has no errors and was processed.
func (r NormalizedRow) Valid() bool {
	return len(r.Errors) == 0 && !r.Overflow
}

// BatchValidationResult partitions a table into accepted and rejected rows.
type BatchValidationResult struct {
	Accepted    []NormalizedRow `json:"accepted"`
	Rejected    []NormalizedRow `json:"rejected"`
	BatchErrors []string        `json:"batchErrors,omitempty"`
	Mapping     ColumnMapping   `json:"mapping"`
	TotalRows   int             `json:"totalRows"` // Non-blank data rows
	Truncated   bool            `json:"truncated,omitempty"`
}

// ItemError is a backend failure mapped back to a spreadsheet row.
// SourceRowNumber is 0 when the failure could not be matched to a row.
type ItemError struct {
	SourceRowNumber int    `json:"sourceRowNumber,omitempty"`
	Identifier      string `json:"identifier,omitempty"`
	Message         string `json:"message"`
}

// OutcomeStatus summarizes a submission.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// SubmissionOutcome is the reconciled result of one batch-create call.
type SubmissionOutcome struct {
	CreatedCount  int         `json:"createdCount"`
	FailedCount   int         `json:"failedCount"`
	PerItemErrors []ItemError `json:"perItemErrors,omitempty"`
}

// Status reports success, partial or failed. Partial outcomes are never
// collapsed into either extreme.
func (o SubmissionOutcome) Status() OutcomeStatus {
	switch {
	case o.FailedCount == 0:
		return OutcomeSuccess
	case o.CreatedCount == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// BatchRequest is the payload sent to the batch-create collaborator.
type BatchRequest struct {
	Kind    string
	Records []Record
	Context map[string]string
}

// FailedItem is one failure reported by the batch-create collaborator.
// Index is the position in the submitted records when the backend reports it.
type FailedItem struct {
	Index      *int
	Identifier string
	Error      string
}

// BatchResponse is the canonical shape of a batch-create response after the
// backend adapter has normalized it.
//
// The Reported flags say whether the backend sent the count (or the list it
// is derived from). A non-zero count is always taken as reported.
type BatchResponse struct {
	CreatedCount    int
	FailedCount     int
	CreatedReported bool
	FailedReported  bool
	Created         []map[string]any
	Failed          []FailedItem
}

func (r *BatchResponse) createdKnown() bool {
	return r.CreatedReported || r.CreatedCount > 0 || len(r.Created) > 0
}

func (r *BatchResponse) failedKnown() bool {
	return r.FailedReported || r.FailedCount > 0 || len(r.Failed) > 0
}

// TableParser turns an uploaded file into a RawTable.
type TableParser interface {
	Parse(ctx context.Context, fileName string, data []byte) (RawTable, error)
}

// BatchCreator submits records to the backend in one call.
type BatchCreator interface {
	CreateMany(ctx context.Context, req BatchRequest) (*BatchResponse, error)
}

// SessionState is the lifecycle stage of an ImportSession.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateParsing    SessionState = "parsing"
	StateValidated  SessionState = "validated"
	StateSubmitting SessionState = "submitting"
	StateCompleted  SessionState = "completed"
	StateFailed     SessionState = "failed"
)

// ValidationSummary holds the counts shown above an import preview.
type ValidationSummary struct {
	TotalRows    int `json:"totalRows"`
	Accepted     int `json:"accepted"`
	Rejected     int `json:"rejected"`
	Selected     int `json:"selected"`
	ErrorCount   int `json:"errorCount"`
	OverflowRows int `json:"overflowRows,omitempty"`
}

// SessionSnapshot is a point-in-time, JSON-ready view of a session.
type SessionSnapshot struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	State        SessionState       `json:"state"`
	Attempt      uint64             `json:"attempt"`
	FileName     string             `json:"fileName,omitempty"`
	Columns      []ColumnAssignment `json:"columns,omitempty"`
	Summary      *ValidationSummary `json:"summary,omitempty"`
	Preview      []NormalizedRow    `json:"preview,omitempty"`
	Rejected     []NormalizedRow    `json:"rejected,omitempty"`
	Report       []string           `json:"report,omitempty"`
	Selection    []int              `json:"selection,omitempty"`
	BatchContext map[string]string  `json:"batchContext,omitempty"`
	Outcome      *SubmissionOutcome `json:"outcome,omitempty"`
	Status       OutcomeStatus      `json:"status,omitempty"`
	Error        *UserMessage       `json:"error,omitempty"`
	Notice       *UserMessage       `json:"notice,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// sortedKeys returns map keys in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
