package core

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submittedRows(ids ...string) []NormalizedRow {
	rows := make([]NormalizedRow, len(ids))
	for i, id := range ids {
		rows[i] = NormalizedRow{
			SourceRowNumber: i + 2,
			Fields:          map[string]any{"studentNo": id, "marks": 50},
		}
	}
	return rows
}

func TestReconcile_PartialByIndex(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3", "S4", "S5")
	resp := &BatchResponse{
		CreatedCount: 3,
		FailedCount:  2,
		Failed: []FailedItem{
			{Index: intPtr(3), Error: "subject not found"},
			{Index: intPtr(1), Error: "already exists"},
		},
	}

	out := Reconcile(resp, rows, resultsSchema(), nil)
	assert.Equal(t, 3, out.CreatedCount)
	assert.Equal(t, 2, out.FailedCount)
	assert.Equal(t, OutcomePartial, out.Status())
	require.Len(t, out.PerItemErrors, 2)
	// sorted by source row
	assert.Equal(t, ItemError{SourceRowNumber: 3, Identifier: "S2", Message: "already exists"}, out.PerItemErrors[0])
	assert.Equal(t, ItemError{SourceRowNumber: 5, Identifier: "S4", Message: "subject not found"}, out.PerItemErrors[1])
}

func TestReconcile_ByIdentifier(t *testing.T) {
	rows := submittedRows("S1", "S2")
	resp := &BatchResponse{
		CreatedCount: 1,
		FailedCount:  1,
		Failed:       []FailedItem{{Identifier: " s2 ", Error: "duplicate"}},
	}

	out := Reconcile(resp, rows, resultsSchema(), nil)
	require.Len(t, out.PerItemErrors, 1)
	assert.Equal(t, 3, out.PerItemErrors[0].SourceRowNumber)
	assert.Equal(t, "S2", out.PerItemErrors[0].Identifier)
}

func TestReconcile_OutOfRangeIndexFallsBackToIdentifier(t *testing.T) {
	rows := submittedRows("S1", "S2")
	resp := &BatchResponse{
		FailedCount: 1,
		Failed:      []FailedItem{{Index: intPtr(9), Identifier: "S1", Error: "bad"}},
	}

	out := Reconcile(resp, rows, resultsSchema(), nil)
	require.Len(t, out.PerItemErrors, 1)
	assert.Equal(t, 2, out.PerItemErrors[0].SourceRowNumber)
}

func TestReconcile_MergesFailuresForOneRow(t *testing.T) {
	rows := submittedRows("S1", "S2")
	resp := &BatchResponse{
		CreatedCount: 1,
		FailedCount:  1,
		Failed: []FailedItem{
			{Index: intPtr(0), Error: "bad marks"},
			{Identifier: "S1", Error: ""},
		},
	}

	out := Reconcile(resp, rows, resultsSchema(), nil)
	assert.Equal(t, 1, out.FailedCount)
	require.Len(t, out.PerItemErrors, 1)
	assert.Equal(t, "bad marks; rejected by server", out.PerItemErrors[0].Message)
}

func TestReconcile_UnmatchedFailures(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3")
	resp := &BatchResponse{
		CreatedCount: 2,
		FailedCount:  1,
		Failed:       []FailedItem{{Identifier: "UNKNOWN", Error: "no such student"}},
	}

	out := Reconcile(resp, rows, resultsSchema(), nil)
	assert.Equal(t, 2, out.CreatedCount)
	assert.Equal(t, 1, out.FailedCount)
	require.Len(t, out.PerItemErrors, 1)
	assert.Zero(t, out.PerItemErrors[0].SourceRowNumber)
	assert.Equal(t, "UNKNOWN", out.PerItemErrors[0].Identifier)
}

func TestReconcile_CountOnlyFailures(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3")
	resp := &BatchResponse{CreatedCount: 1, FailedCount: 2}

	out := Reconcile(resp, rows, resultsSchema(), nil)
	assert.Equal(t, 1, out.CreatedCount)
	assert.Equal(t, 2, out.FailedCount)
	require.Len(t, out.PerItemErrors, 1)
	assert.Equal(t, "2 records failed without details from the server", out.PerItemErrors[0].Message)
}

func TestReconcile_CreatedCountBelowSubmitted(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3", "S4", "S5")

	out := Reconcile(&BatchResponse{CreatedCount: 3, CreatedReported: true}, rows, resultsSchema(), nil)
	assert.Equal(t, 3, out.CreatedCount)
	assert.Equal(t, 2, out.FailedCount)
	assert.Equal(t, OutcomePartial, out.Status())
	require.Len(t, out.PerItemErrors, 1)
	assert.Equal(t, "2 records failed without details from the server", out.PerItemErrors[0].Message)
}

func TestReconcile_CreatedCountBelowSubmittedWithSomeDetails(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3", "S4", "S5")
	resp := &BatchResponse{
		CreatedCount: 2,
		Failed:       []FailedItem{{Index: intPtr(4), Error: "not enrolled"}},
	}

	out := Reconcile(resp, rows, resultsSchema(), nil)
	assert.Equal(t, 2, out.CreatedCount)
	assert.Equal(t, 3, out.FailedCount)
	require.Len(t, out.PerItemErrors, 2)
	assert.Equal(t, 6, out.PerItemErrors[0].SourceRowNumber)
	assert.Equal(t, "2 records failed without details from the server", out.PerItemErrors[1].Message)
}

func TestReconcile_ExplicitZeroCreated(t *testing.T) {
	rows := submittedRows("S1", "S2")

	out := Reconcile(&BatchResponse{CreatedReported: true}, rows, resultsSchema(), nil)
	assert.Equal(t, 0, out.CreatedCount)
	assert.Equal(t, 2, out.FailedCount)
	assert.Equal(t, OutcomeFailed, out.Status())
}

func TestReconcile_NothingReported(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3")

	for name, resp := range map[string]*BatchResponse{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			out := Reconcile(resp, rows, resultsSchema(), nil)
			assert.Equal(t, 0, out.CreatedCount)
			assert.Equal(t, 3, out.FailedCount)
			assert.Equal(t, OutcomeFailed, out.Status())
			require.Len(t, out.PerItemErrors, 1)
			assert.Equal(t, "the server did not report results for 3 records", out.PerItemErrors[0].Message)
		})
	}
}

func TestReconcile_CreatedCountAboveSubmitted(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3")

	out := Reconcile(&BatchResponse{CreatedCount: 10}, rows, resultsSchema(), nil)
	assert.Equal(t, 3, out.CreatedCount)
	assert.Equal(t, 0, out.FailedCount)
	assert.Empty(t, out.PerItemErrors)
}

func TestReconcile_CountsAlwaysSumToSubmitted(t *testing.T) {
	rows := submittedRows("S1", "S2", "S3")
	responses := []*BatchResponse{
		{FailedCount: 99},
		{CreatedCount: 1, FailedCount: 1},
		{Failed: []FailedItem{{Index: intPtr(0)}, {Index: intPtr(1)}, {Index: intPtr(2)}, {Identifier: "X"}}},
		{Failed: []FailedItem{{Identifier: "A"}, {Identifier: "B"}, {Identifier: "C"}, {Identifier: "D"}}},
	}
	for i, resp := range responses {
		t.Run(fmt.Sprintf("response %d", i), func(t *testing.T) {
			out := Reconcile(resp, rows, resultsSchema(), nil)
			assert.Equal(t, len(rows), out.CreatedCount+out.FailedCount)
			assert.GreaterOrEqual(t, out.CreatedCount, 0)
			assert.GreaterOrEqual(t, out.FailedCount, 0)
		})
	}
}

func TestReconcile_LogsDisagreement(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rows := submittedRows("S1", "S2")

	Reconcile(&BatchResponse{CreatedCount: 2, FailedCount: 0}, rows, resultsSchema(), logger)
	assert.Empty(t, buf.String())

	Reconcile(&BatchResponse{CreatedCount: 5}, rows, resultsSchema(), logger)
	assert.Contains(t, buf.String(), "counts disagree")
}

func TestSubmissionOutcome_Status(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, SubmissionOutcome{CreatedCount: 3}.Status())
	assert.Equal(t, OutcomePartial, SubmissionOutcome{CreatedCount: 3, FailedCount: 1}.Status())
	assert.Equal(t, OutcomeFailed, SubmissionOutcome{FailedCount: 2}.Status())
}
