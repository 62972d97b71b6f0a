package core

// classify.go locates target fields in an arbitrary header row.
//
// Operators upload whatever their department exports, so headers are
// matched heuristically. Precedence per header:
//  1. Exact: normalized header equals the normalized field name or label
//  2. Alias: the header contains one or more aliases; more matching aliases
//     win, then the longest matching alias
//  3. Ties go to the field declared first in the schema
//
// A header containing one of a field's Excludes never matches that field by
// alias, so "Student Name" is not taken for the student number.
//
// Each header maps to at most one field and each field to at most one header.
// When two headers pick the same field, the better match keeps it and ties
// go to the lowest column index.

import (
	"fmt"
	"strings"
)

type matchScore struct {
	exact    bool
	hits     int
	aliasLen int
}

func (a matchScore) beats(b matchScore) bool {
	if a.exact != b.exact {
		return a.exact
	}
	if a.hits != b.hits {
		return a.hits > b.hits
	}
	return a.aliasLen > b.aliasLen
}

func scoreHeader(norm string, f FieldSpec) (matchScore, bool) {
	if norm == "" {
		return matchScore{}, false
	}
	if norm == NormalizeHeader(f.Name) || (f.Label != "" && norm == NormalizeHeader(f.Label)) {
		return matchScore{exact: true}, true
	}
	for _, ex := range f.Excludes {
		if e := NormalizeHeader(ex); e != "" && strings.Contains(norm, e) {
			return matchScore{}, false
		}
	}
	var sc matchScore
	for _, alias := range f.Aliases {
		a := NormalizeHeader(alias)
		if a == "" || !strings.Contains(norm, a) {
			continue
		}
		sc.hits++
		sc.aliasLen = max(sc.aliasLen, len(a))
	}
	if sc.hits == 0 {
		return matchScore{}, false
	}
	return sc, true
}

func newColumnMapping(headers []string) ColumnMapping {
	return ColumnMapping{
		Headers: headers,
		Columns: make(map[int]string, len(headers)),
		Fields:  make(map[string]int, len(headers)),
	}
}

func (m *ColumnMapping) assign(col int, field string) {
	m.Columns[col] = field
	m.Fields[field] = col
}

// finish fills Unmapped and Missing from the current assignments.
func (m *ColumnMapping) finish(schema *TargetSchema) {
	m.Unmapped = nil
	for i := range m.Headers {
		if _, ok := m.Columns[i]; !ok {
			m.Unmapped = append(m.Unmapped, i)
		}
	}
	m.Missing = nil
	for _, f := range schema.Fields {
		if _, ok := m.Fields[f.Name]; !ok && f.Required {
			m.Missing = append(m.Missing, f.Name)
		}
	}
}

// Classify maps headers to the schema's fields.
//
// If no header matches the identifier field and column 0 is unclaimed,
// column 0 is used as the identifier and a warning is recorded.
func Classify(headers []string, schema *TargetSchema) ColumnMapping {
	m := newColumnMapping(headers)

	type candidate struct {
		col   int
		field int
		score matchScore
	}
	var picks []candidate
	for col, h := range headers {
		norm := NormalizeHeader(h)
		c := candidate{col: col, field: -1}
		for fi, f := range schema.Fields {
			sc, ok := scoreHeader(norm, f)
			if !ok {
				continue
			}
			if c.field < 0 || sc.beats(c.score) {
				c.field, c.score = fi, sc
			}
		}
		if c.field >= 0 {
			picks = append(picks, c)
		}
	}

	// When several headers pick the same field the better match keeps it;
	// equal matches go to the lowest column.
	winner := make(map[int]candidate, len(picks))
	for _, c := range picks {
		if w, ok := winner[c.field]; !ok || c.score.beats(w.score) {
			winner[c.field] = c
		}
	}
	for _, c := range picks {
		w := winner[c.field]
		if w.col == c.col {
			m.assign(c.col, schema.Fields[c.field].Name)
			continue
		}
		m.Warnings = append(m.Warnings, fmt.Sprintf(
			"Columns %q and %q both look like %s; using %q",
			headers[w.col], headers[c.col], schema.Fields[c.field].DisplayName(), headers[w.col]))
	}

	if id := schema.IdentifierField; id != "" && len(headers) > 0 {
		if _, ok := m.Fields[id]; !ok {
			if _, claimed := m.Columns[0]; !claimed {
				m.assign(0, id)
				m.IdentifierFallback = true
				m.Warnings = append(m.Warnings, fmt.Sprintf(
					"No column recognised as %s; using the first column %q",
					schema.Identifier().DisplayName(), headers[0]))
			}
		}
	}

	m.finish(schema)
	return m
}

// ApplyOverrides pins fields to columns chosen by the operator. Overrides
// replace the heuristic choice for both the field and the column. A negative
// column unmaps the field.
func ApplyOverrides(mapping ColumnMapping, overrides map[string]int, schema *TargetSchema) (ColumnMapping, error) {
	out := newColumnMapping(mapping.Headers)
	for col, field := range mapping.Columns {
		out.assign(col, field)
	}
	out.Warnings = append(out.Warnings, mapping.Warnings...)

	for _, field := range sortedKeys(overrides) {
		if _, ok := schema.Field(field); !ok {
			return ColumnMapping{}, fmt.Errorf("%w: unknown field %q", ErrInvalidMapping, field)
		}
		col := overrides[field]
		if col >= len(mapping.Headers) {
			return ColumnMapping{}, fmt.Errorf("%w: column %d is out of range for %s", ErrInvalidMapping, col, field)
		}
	}

	// Apply in declaration order so conflicting overrides resolve the same way every time.
	for _, f := range schema.Fields {
		col, ok := overrides[f.Name]
		if !ok {
			continue
		}
		if prev, mapped := out.Fields[f.Name]; mapped {
			delete(out.Columns, prev)
			delete(out.Fields, f.Name)
		}
		if col < 0 {
			continue
		}
		if other, claimed := out.Columns[col]; claimed {
			delete(out.Fields, other)
		}
		out.assign(col, f.Name)
	}

	idField := schema.IdentifierField
	if mapping.IdentifierFallback && !hasKey(overrides, idField) {
		col, ok := out.Fields[idField]
		out.IdentifierFallback = ok && col == mapping.Fields[idField]
	}

	out.finish(schema)
	return out, nil
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}
