package core

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

const unknownFailure = "rejected by server"

// Reconcile maps a batch-create response back onto the submitted rows.
//
// Failures are matched by submission index first, then by identifier.
// Failures that match no row are still reported, without a row number.
// CreatedCount + FailedCount always equals len(submitted). A reported
// created count below the number submitted, or a failed count above the
// itemised failures, marks the difference as failed without details. A
// response that reports nothing counts every record as failed. When the
// backend's own counts disagree the discrepancy is logged.
func Reconcile(resp *BatchResponse, submitted []NormalizedRow, schema *TargetSchema, logger *slog.Logger) SubmissionOutcome {
	if logger == nil {
		logger = slog.Default()
	}
	n := len(submitted)
	if resp == nil {
		resp = &BatchResponse{}
	}

	idField := schema.IdentifierField
	byID := make(map[string]int, n)
	for i, row := range submitted {
		key := identifierKey(row.Fields[idField])
		if _, dup := byID[key]; key != "" && !dup {
			byID[key] = i
		}
	}

	// index into submitted -> position in matched
	matchedAt := make(map[int]int)
	var matched, unmatched []ItemError

	for _, f := range resp.Failed {
		msg := strings.TrimSpace(f.Error)
		if msg == "" {
			msg = unknownFailure
		}

		idx := -1
		if f.Index != nil && *f.Index >= 0 && *f.Index < n {
			idx = *f.Index
		} else if key := identifierKey(f.Identifier); key != "" {
			if i, ok := byID[key]; ok {
				idx = i
			}
		}

		if idx < 0 {
			unmatched = append(unmatched, ItemError{Identifier: f.Identifier, Message: msg})
			continue
		}
		if pos, ok := matchedAt[idx]; ok {
			matched[pos].Message += "; " + msg
			continue
		}
		matchedAt[idx] = len(matched)
		matched = append(matched, ItemError{
			SourceRowNumber: submitted[idx].SourceRowNumber,
			Identifier:      CellText(submitted[idx].Fields[idField]),
			Message:         msg,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SourceRowNumber < matched[j].SourceRowNumber
	})

	failed := len(matched)
	// Unmatched failures still belong to some submitted record.
	failed += min(len(unmatched), n-failed)

	createdCount := resp.CreatedCount
	if !resp.CreatedReported && createdCount == 0 {
		createdCount = len(resp.Created)
	}

	switch {
	case !resp.createdKnown() && !resp.failedKnown():
		// Nothing confirms any record was created.
		if n > 0 {
			unmatched = append(unmatched, ItemError{Message: "the server did not report results for " + pluralize(n, "record", "records")})
		}
		failed = n
	default:
		floor := failed
		if resp.failedKnown() {
			floor = max(floor, min(resp.FailedCount, n))
		}
		if resp.createdKnown() && createdCount < n {
			floor = max(floor, n-max(createdCount, 0))
		}
		if floor > failed {
			unmatched = append(unmatched, ItemError{Message: pluralize(floor-failed, "record", "records") + " failed without details from the server"})
			failed = floor
		}
	}
	created := n - failed

	if (resp.createdKnown() && createdCount != created) || (resp.FailedCount != 0 && resp.FailedCount != failed) {
		logger.Warn("batch response counts disagree with itemised results",
			"submitted", n,
			"reported_created", resp.CreatedCount,
			"reported_failed", resp.FailedCount,
			"reconciled_created", created,
			"reconciled_failed", failed,
		)
	}

	errs := append(matched, unmatched...)
	return SubmissionOutcome{
		CreatedCount:  created,
		FailedCount:   failed,
		PerItemErrors: errs,
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
