package api

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Result is the response of the execution endpoint.
//
// The backend contract only promises a JSON value. Tabular responses
// ({"columns": [...], "rows": [[...]]} or an array of flat objects) are
// projected onto Columns/Rows; anything else is only available as Raw.
type Result struct {
	RequestID  string
	Raw        json.RawMessage
	Columns    []string
	Rows       [][]any
	DurationMS int64
}

// Tabular reports whether the result could be projected onto rows.
func (r *Result) Tabular() bool {
	return r != nil && len(r.Columns) > 0
}

// Records returns the tabular result as one map per row.
func (r *Result) Records() []map[string]any {
	if !r.Tabular() {
		return nil
	}
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			if j < len(row) {
				rec[col] = row[j]
			} else {
				rec[col] = nil
			}
		}
		out[i] = rec
	}
	return out
}

type wireResult struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	DurationMS int64    `json:"duration_ms"`
}

func decodeResult(body []byte) (*Result, error) {
	res := &Result{Raw: json.RawMessage(append([]byte(nil), body...))}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch val := v.(type) {
	case map[string]any:
		if _, ok := val["columns"]; !ok {
			return res, nil
		}
		var w wireResult
		if err := json.Unmarshal(body, &w); err != nil {
			// Not the tabular shape after all; keep it raw.
			return res, nil
		}
		res.Columns = w.Columns
		res.Rows = w.Rows
		res.DurationMS = w.DurationMS
	case []any:
		res.Columns, res.Rows = projectObjects(val)
	}
	return res, nil
}

// projectObjects turns an array of flat objects into columns and rows. The
// column order is the key order of the first object, which JSON does not
// preserve through map decoding, so keys are sorted for determinism.
func projectObjects(items []any) ([]string, [][]any) {
	if len(items) == 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	var cols []string
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, nil
		}
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	rows := make([][]any, len(items))
	for i, it := range items {
		obj := it.(map[string]any)
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = obj[c]
		}
		rows[i] = row
	}
	return cols, rows
}
