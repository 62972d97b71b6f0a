package core

import (
	"context"
	"fmt"
	"sync"
)

// resultsSchema mirrors the registered results kind without depending on
// the schemas package.
func resultsSchema() *TargetSchema {
	return &TargetSchema{
		Kind:            "results",
		Label:           "Exam Results",
		IdentifierField: "studentNo",
		Fields: []FieldSpec{
			{
				Name:     "studentNo",
				Label:    "Student Number",
				Required: true,
				Aliases:  []string{"student", "regno", "registration", "rollno", "admission", "matric", "index", "id", "number"},
				Excludes: []string{"name"},
				Rule:     Identifier(2),
			},
			{Name: "marks", Label: "Marks", Aliases: []string{"mark", "score", "total"}, Rule: IntegerInRange(0, 100).Optional()},
			{
				Name:     "grade",
				Label:    "Grade",
				Aliases:  []string{"grade", "letter"},
				Excludes: []string{"point"},
				Rule:     EnumeratedGrade(GradeLetters).Optional(),
				Derive:   GradePointDerivation("gradePoint"),
			},
			{Name: "remarks", Label: "Remarks", Aliases: []string{"remark", "comment", "note"}, Rule: OptionalText(500)},
		},
		RowRules: []RowRule{AtLeastOneOf("marks", "grade")},
		Context: []ContextField{
			{Name: "subjectId", Label: "Subject", Required: true},
			{Name: "examType", Label: "Exam Type", Required: true},
		},
	}
}

// adminsSchema mirrors the registered admins kind with a deterministic
// password default.
func adminsSchema() *TargetSchema {
	return &TargetSchema{
		Kind:            "admins",
		IdentifierField: "lecturerId",
		Fields: []FieldSpec{
			{
				Name:     "lecturerId",
				Label:    "Lecturer ID",
				Required: true,
				Aliases:  []string{"lecturerid", "staffid", "staffno", "employeeid", "adminid", "id"},
				Rule:     Identifier(2),
			},
			{Name: "name", Label: "Full Name", Required: true, Aliases: []string{"fullname", "name"}, Rule: RequiredText(2)},
			{Name: "email", Label: "Email", Required: true, Aliases: []string{"email", "mail"}, Rule: Email()},
			{Name: "phone", Label: "Phone", Aliases: []string{"phone", "mobile", "tel"}, Rule: PhoneDigitsAndSeparators()},
			{
				Name:    "password",
				Label:   "Password",
				Aliases: []string{"password", "pass"},
				Rule:    OptionalText(64),
				Default: &DefaultRule{Name: "random-initial-password", Resolve: func() any { return "generated-secret" }},
			},
		},
		Context: []ContextField{{Name: "departmentId", Label: "Department", Required: true}},
	}
}

func cells(values ...any) []CellValue {
	return values
}

func rawTable(headers []string, rows ...[]CellValue) RawTable {
	return RawTable{Headers: headers, Rows: rows, HeaderRowNumber: 1}
}

// stubParser returns a fixed table, optionally blocking until released.
type stubParser struct {
	table   RawTable
	err     error
	release chan struct{}
	started chan struct{}
}

func (p *stubParser) Parse(ctx context.Context, fileName string, data []byte) (RawTable, error) {
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	return p.table, p.err
}

// tableByName parses to the table registered under the file name.
type tableByName map[string]RawTable

func (t tableByName) Parse(ctx context.Context, fileName string, data []byte) (RawTable, error) {
	tbl, ok := t[fileName]
	if !ok {
		return RawTable{}, fmt.Errorf("%w: %s", ErrFileUnreadable, fileName)
	}
	return tbl, nil
}

// stubCreator records requests and returns canned responses.
type stubCreator struct {
	mu       sync.Mutex
	requests []BatchRequest
	resp     func(req BatchRequest) (*BatchResponse, error)
	release  chan struct{}
	started  chan struct{}
}

func (c *stubCreator) CreateMany(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.release != nil {
		<-c.release
	}
	if c.resp == nil {
		return &BatchResponse{CreatedCount: len(req.Records)}, nil
	}
	return c.resp(req)
}

func (c *stubCreator) calls() []BatchRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]BatchRequest(nil), c.requests...)
}

func intPtr(i int) *int {
	return &i
}
