package core

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchValidator_ScenarioMissingIdentifierValue(t *testing.T) {
	schema := &TargetSchema{
		Kind:            "staff-results",
		IdentifierField: "studentNo",
		Fields: []FieldSpec{
			{Name: "studentNo", Label: "Student Number", Required: true, Aliases: []string{"student"}, Rule: Identifier(2)},
			{Name: "email", Label: "Email", Aliases: []string{"email"}, Rule: Email()},
			{Name: "lecturerId", Label: "Lecturer ID", Aliases: []string{"lecturer"}, Rule: Identifier(2)},
		},
	}
	table := rawTable([]string{"Student Number", "Email Address", "Lecturer Id"}, cells("", "jane@x.com", "L01"))

	res, err := NewBatchValidator(0).Validate(table, schema)
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 2, res.Rejected[0].SourceRowNumber)
	assert.Equal(t, []string{"Row 2: Missing Student Number"}, res.Rejected[0].Errors)
}

func TestBatchValidator_ScenarioMarksOutOfRange(t *testing.T) {
	table := rawTable([]string{"Name", "Marks"}, cells("A001", "150"))

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	assert.True(t, res.Mapping.IdentifierFallback)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	require.Len(t, res.Rejected[0].Errors, 1)
	assert.Contains(t, res.Rejected[0].Errors[0], "Marks must be between 0 and 100")
	assert.Contains(t, res.Rejected[0].Errors[0], `"150"`)
	assert.Contains(t, res.BatchErrors[0], "using the first column")
}

func TestBatchValidator_ScenarioGrades(t *testing.T) {
	table := rawTable([]string{"Student No", "Grade"},
		cells("S1", "A+"),
		cells("S2", "Z"),
	)

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "S1", res.Accepted[0].Fields["studentNo"])
	assert.Equal(t, 4.0, res.Accepted[0].Fields["gradePoint"])

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 3, res.Rejected[0].SourceRowNumber)
	assert.Contains(t, res.Rejected[0].Errors[0], `Invalid Grade "Z"`)
}

func TestBatchValidator_ScenarioTooManyRows(t *testing.T) {
	rows := make([][]CellValue, 501)
	for i := range rows {
		rows[i] = cells(fmt.Sprintf("S%04d", i+1), "50")
	}
	// row 501 would fail if it were processed
	rows[500] = cells("", "abc")
	table := RawTable{Headers: []string{"Student Number", "Marks"}, Rows: rows}

	res, err := NewBatchValidator(500).Validate(table, resultsSchema())
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 500)
	require.Len(t, res.Rejected, 1)
	assert.True(t, res.Rejected[0].Overflow)
	assert.Empty(t, res.Rejected[0].Errors)
	assert.Equal(t, 502, res.Rejected[0].SourceRowNumber)
	assert.True(t, res.Truncated)
	assert.Equal(t, []string{"Too many rows: 501 data rows, only the first 500 were processed"}, res.BatchErrors)
	assert.Equal(t, 501, res.TotalRows)
}

func TestBatchValidator_SchemaLimitOverridesDefault(t *testing.T) {
	schema := resultsSchema()
	schema.MaxRows = 2
	table := rawTable([]string{"Student Number", "Marks"}, cells("S1", 1), cells("S2", 2), cells("S3", 3))

	res, err := NewBatchValidator(500).Validate(table, schema)
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 2)
	assert.Equal(t, 1, res.OverflowCount())
}

func TestBatchValidator_ScenarioEmptyFile(t *testing.T) {
	tests := []struct {
		name  string
		table RawTable
	}{
		{name: "headers only", table: rawTable([]string{"Student Number", "Marks"})},
		{name: "blank rows only", table: rawTable([]string{"Student Number", "Marks"}, cells("", nil), cells("  "))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewBatchValidator(0).Validate(tt.table, resultsSchema())
			assert.ErrorIs(t, err, ErrEmptyFile)
			assert.Nil(t, res)
		})
	}
}

func TestBatchValidator_MissingRequiredColumn(t *testing.T) {
	table := rawTable([]string{"Full Name", "Phone"}, cells("Ada Obi", "0803 555 0101"))

	res, err := NewBatchValidator(0).Validate(table, adminsSchema())
	require.ErrorIs(t, err, ErrMissingRequiredColumn)
	require.NotNil(t, res)
	assert.Empty(t, res.Accepted)
	assert.Empty(t, res.Rejected)
	assert.Equal(t, []string{
		"Missing required column: Lecturer ID",
		"Missing required column: Email",
	}, res.BatchErrors)
}

func TestBatchValidator_Duplicates(t *testing.T) {
	table := rawTable([]string{"Student Number", "Marks"},
		cells("S1", "70"),
		cells("S2", "60"),
		cells(" s1 ", "80"),
		cells("S1", "abc"),
	)

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	require.Len(t, res.Accepted, 2)
	assert.Equal(t, 2, res.Accepted[0].SourceRowNumber)
	assert.Equal(t, 3, res.Accepted[1].SourceRowNumber)

	require.Len(t, res.Rejected, 2)
	assert.Equal(t, []string{`Row 4: Duplicate Student Number "s1" (first seen in row 2)`}, res.Rejected[0].Errors)
	assert.Contains(t, res.Rejected[1].Errors, `Row 5: Duplicate Student Number "S1" (first seen in row 2)`)
}

func TestBatchValidator_DuplicatePairAcceptsExactlyOne(t *testing.T) {
	table := rawTable([]string{"Student Number", "Grade"}, cells("X9", "A"), cells("X9", "B"))

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1)
	require.Len(t, res.Rejected, 1)
	msg := res.Rejected[0].Errors[0]
	assert.Contains(t, msg, "Row 3")
	assert.Contains(t, msg, "row 2")
}

func TestBatchValidator_InvalidFirstOccurrenceDoesNotBlockRepeat(t *testing.T) {
	table := rawTable([]string{"Student Number", "Marks"},
		cells("S1", "150"),
		cells("s1", "80"),
		cells("S1", "abc"),
	)

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, 3, res.Accepted[0].SourceRowNumber)

	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 2, res.Rejected[0].SourceRowNumber)
	assert.Contains(t, res.Rejected[0].Errors, `Row 2: Duplicate Student Number "S1" (kept in row 3)`)
	assert.Contains(t, res.Rejected[1].Errors, `Row 4: Duplicate Student Number "S1" (kept in row 3)`)
}

func TestBatchValidator_AllOccurrencesInvalid(t *testing.T) {
	table := rawTable([]string{"Student Number", "Marks"}, cells("S1", "150"), cells("S1", "abc"))

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 2)
	assert.Len(t, res.Rejected[0].Errors, 1)
	assert.Contains(t, res.Rejected[1].Errors, `Row 3: Duplicate Student Number "S1" (first seen in row 2)`)
}

func TestBatchValidator_BlankRowsSkipped(t *testing.T) {
	table := rawTable([]string{"Student Number", "Marks"},
		cells("S1", "10"),
		cells("", ""),
		cells(nil, "20"),
		cells("S3", "30"),
	)

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, []int{2, 5}, rowNumbers(res.Accepted))
	assert.Equal(t, []int{4}, rowNumbers(res.Rejected))
	assert.Equal(t, []string{"Row 4: Missing Student Number"}, res.Rejected[0].Errors)
}

func TestBatchValidator_HeaderRowOffset(t *testing.T) {
	table := RawTable{
		Headers:         []string{"Student Number", "Marks"},
		Rows:            [][]CellValue{cells("S1", "x")},
		HeaderRowNumber: 4,
	}
	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rejected[0].SourceRowNumber)
	assert.Contains(t, res.Rejected[0].Errors[0], "Row 5:")
}

func TestBatchValidator_PartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := []CellValue{"", nil, "S1", "S2", "s2", "S3", "bad id", "55", "150", "abc", "A", "Z", float64(40)}
	pick := func() CellValue { return values[rng.Intn(len(values))] }

	for i := 0; i < 200; i++ {
		n := rng.Intn(30)
		rows := make([][]CellValue, n)
		nonBlank := 0
		for j := range rows {
			rows[j] = cells(pick(), pick(), pick())
			if !isBlankRow(rows[j]) {
				nonBlank++
			}
		}
		table := rawTable([]string{"Student Number", "Marks", "Grade"}, rows...)

		res, err := NewBatchValidator(10).Validate(table, resultsSchema())
		if nonBlank == 0 {
			require.ErrorIs(t, err, ErrEmptyFile)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, nonBlank, len(res.Accepted)+len(res.Rejected))
		assertIncreasing(t, rowNumbers(res.Accepted))
		assertIncreasing(t, rowNumbers(res.Rejected))
		for _, r := range res.Accepted {
			assert.Empty(t, r.Errors)
		}
	}
}

func TestBatchValidationResult_Report(t *testing.T) {
	res := &BatchValidationResult{BatchErrors: []string{"batch"}}
	for i := 0; i < 12; i++ {
		res.Rejected = append(res.Rejected, NormalizedRow{
			SourceRowNumber: i + 2,
			Errors:          []string{fmt.Sprintf("Row %d: bad", i+2)},
		})
	}

	report := res.Report(10)
	require.Len(t, report, 11)
	assert.Equal(t, "batch", report[0])
	assert.Equal(t, "Row 10: bad", report[9])
	assert.Equal(t, "...and 3 more", report[10])

	assert.Len(t, res.Report(0), 13)
	assert.Equal(t, 13, res.ErrorCount())
	// Report does not alias the stored errors
	assert.Equal(t, "batch", res.BatchErrors[0])
	assert.Len(t, res.BatchErrors, 1)
}

func rowNumbers(rows []NormalizedRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.SourceRowNumber
	}
	return out
}

func assertIncreasing(t *testing.T, nums []int) {
	t.Helper()
	for i := 1; i < len(nums); i++ {
		assert.Less(t, nums[i-1], nums[i])
	}
}
