package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/pkshell/internal/cli/output"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/querypane"
)

// renderResult renders the last successful result. It is kept while a later
// query fails.
func renderResult(s *output.Styles, tr *locale.Translator, st querypane.State) string {
	res := st.LastResult
	if res == nil {
		return s.Muted.Render(tr.T(locale.QueryNoResults))
	}
	if !res.Tabular() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, res.Raw, "", "  "); err != nil {
			return string(res.Raw)
		}
		return buf.String()
	}

	t := newTable()
	header := make(table.Row, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range res.Rows {
		out := make(table.Row, len(res.Columns))
		for i := range res.Columns {
			var v any
			if i < len(r) {
				v = r[i]
			}
			out[i] = cell(v)
		}
		t.AppendRow(out)
	}
	return t.Render()
}

// renderDetail renders the columns and indexes of the focused table.
func renderDetail(s *output.Styles, d *navigator.TableDetail) string {
	var b strings.Builder
	b.WriteString(s.Bold.Render(d.Name))
	b.WriteString("\n\n")
	b.WriteString(s.Header.Render(d.ColumnsHeading))
	b.WriteByte('\n')

	cols := newTable()
	cols.AppendHeader(table.Row{"name", "type", "len", "not null", "default"})
	for _, c := range d.Columns {
		cols.AppendRow(table.Row{c.Name, c.TypeID.String(), c.Len, yesNo(c.NotNull), yesNo(c.HasDefault)})
	}
	b.WriteString(cols.Render())

	if len(d.Indexes) > 0 {
		b.WriteString("\n\n")
		b.WriteString(s.Header.Render(d.IndexesHeading))
		b.WriteByte('\n')
		idx := newTable()
		idx.AppendHeader(table.Row{"name", "kind", "columns", "primary"})
		for _, x := range d.Indexes {
			names := make([]string, 0, len(x.Columns()))
			for _, pos := range x.Columns() {
				if pos >= 0 && pos < len(d.Columns) {
					names = append(names, d.Columns[pos].Name)
				} else {
					names = append(names, fmt.Sprint(pos))
				}
			}
			idx.AppendRow(table.Row{x.Name, x.Kind.String(), strings.Join(names, ", "), yesNo(x.IsPrimary)})
		}
		b.WriteString(idx.Render())
	}
	return b.String()
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(v)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
