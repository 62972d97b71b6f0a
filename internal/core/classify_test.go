package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Results(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		want     map[string]int
		fallback bool
		warnings int
	}{
		{
			name:    "exact names",
			headers: []string{"studentNo", "marks", "grade", "remarks"},
			want:    map[string]int{"studentNo": 0, "marks": 1, "grade": 2, "remarks": 3},
		},
		{
			name:    "labels and aliases",
			headers: []string{"Reg No.", "Total Score", "Letter Grade", "Comments"},
			want:    map[string]int{"studentNo": 0, "marks": 1, "grade": 2, "remarks": 3},
		},
		{
			name:    "longest alias wins",
			headers: []string{"Student ID", "Teacher Remarks"},
			want:    map[string]int{"studentNo": 0, "remarks": 1},
		},
		{
			name:    "name column beside an id column",
			headers: []string{"Student Name", "Student ID", "Marks"},
			want:    map[string]int{"studentNo": 1, "marks": 2},
		},
		{
			name:    "grade point column stays unmapped",
			headers: []string{"Reg No", "Grade", "Grade Point", "Marks"},
			want:    map[string]int{"studentNo": 0, "grade": 1, "marks": 3},
		},
		{
			name:     "more matching aliases beat a longer alias",
			headers:  []string{"Registration", "Student Number", "Marks"},
			want:     map[string]int{"studentNo": 1, "marks": 2},
			warnings: 1,
		},
		{
			name:     "identifier falls back to first column",
			headers:  []string{"Name", "Marks"},
			want:     map[string]int{"studentNo": 0, "marks": 1},
			fallback: true,
			warnings: 1,
		},
		{
			name:     "equal matches keep the lowest column",
			headers:  []string{"Student Number", "Score", "Total"},
			want:     map[string]int{"studentNo": 0, "marks": 1},
			warnings: 1,
		},
		{
			name:     "exact header beats earlier alias header",
			headers:  []string{"ID", "Student Number"},
			want:     map[string]int{"studentNo": 1},
			warnings: 1,
		},
	}

	schema := resultsSchema()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Classify(tt.headers, schema)
			assert.Equal(t, tt.want, m.Fields)
			assert.Equal(t, tt.fallback, m.IdentifierFallback)
			assert.Len(t, m.Warnings, tt.warnings)
			for field, col := range tt.want {
				assert.Equal(t, field, m.Columns[col])
			}
		})
	}
}

func TestBatchValidator_NameColumnIsNotTheIdentifier(t *testing.T) {
	table := rawTable([]string{"Student Name", "Student ID", "Marks"}, cells("Jane Doe", "S1001", "78"))

	res, err := NewBatchValidator(0).Validate(table, resultsSchema())
	require.NoError(t, err)
	assert.False(t, res.Mapping.IdentifierFallback)
	assert.Empty(t, res.Rejected)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "S1001", res.Accepted[0].Fields["studentNo"])
	assert.Equal(t, "Jane Doe", res.Accepted[0].Extras["Student Name"])
}

func TestClassify_LosingHeaderIsUnmapped(t *testing.T) {
	m := Classify([]string{"ID", "Student Number"}, resultsSchema())
	assert.Equal(t, 1, m.Fields["studentNo"])
	assert.Equal(t, []int{0}, m.Unmapped)
	assert.Contains(t, m.Warnings[0], `using "Student Number"`)
}

func TestClassify_UnmappedAndMissing(t *testing.T) {
	m := Classify([]string{"Full Name", "Department", "Email"}, adminsSchema())

	// column 0 is claimed by name, so the identifier cannot fall back to it
	assert.Equal(t, map[string]int{"name": 0, "email": 2}, m.Fields)
	assert.Equal(t, []string{"lecturerId"}, m.Missing)
	assert.False(t, m.IdentifierFallback)
	assert.Equal(t, []int{1}, m.Unmapped)
}

func TestClassify_PermutationInvariant(t *testing.T) {
	schema := resultsSchema()
	base := []string{"Matric Number", "Exam Score", "Grade", "Teacher Note", "Session"}
	want := map[string]string{
		"Matric Number": "studentNo",
		"Exam Score":    "marks",
		"Grade":         "grade",
		"Teacher Note":  "remarks",
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		headers := append([]string(nil), base...)
		rng.Shuffle(len(headers), func(a, b int) { headers[a], headers[b] = headers[b], headers[a] })

		m := Classify(headers, schema)
		require.Empty(t, m.Missing, "headers %v", headers)
		for col, h := range headers {
			assert.Equal(t, want[h], m.Columns[col], "headers %v", headers)
		}
		assert.Len(t, m.Fields, len(want))
	}
}

func TestApplyOverrides(t *testing.T) {
	schema := resultsSchema()
	headers := []string{"Name", "Marks", "Reg No"}
	m := Classify(headers, schema)
	require.Equal(t, 2, m.Fields["studentNo"])

	t.Run("pin identifier", func(t *testing.T) {
		got, err := ApplyOverrides(m, map[string]int{"studentNo": 0}, schema)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Fields["studentNo"])
		assert.Equal(t, []int{2}, got.Unmapped)
		assert.False(t, got.IdentifierFallback)
		// the original mapping is untouched
		assert.Equal(t, 2, m.Fields["studentNo"])
	})

	t.Run("steal a column", func(t *testing.T) {
		got, err := ApplyOverrides(m, map[string]int{"grade": 1}, schema)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Fields["grade"])
		_, hasMarks := got.Fields["marks"]
		assert.False(t, hasMarks)
	})

	t.Run("unmap a field", func(t *testing.T) {
		got, err := ApplyOverrides(m, map[string]int{"marks": -1}, schema)
		require.NoError(t, err)
		_, hasMarks := got.Fields["marks"]
		assert.False(t, hasMarks)
		assert.Contains(t, got.Unmapped, 1)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := ApplyOverrides(m, map[string]int{"nope": 0}, schema)
		assert.ErrorIs(t, err, ErrInvalidMapping)
	})

	t.Run("column out of range", func(t *testing.T) {
		_, err := ApplyOverrides(m, map[string]int{"grade": 9}, schema)
		assert.ErrorIs(t, err, ErrInvalidMapping)
	})
}
