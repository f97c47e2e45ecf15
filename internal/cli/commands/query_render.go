package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/pkshell/internal/api"
	"gopkg.in/yaml.v3"
)

// tabular is a column-ordered result set.
type tabular struct {
	columns []string
	rows    [][]any
}

func resultTabular(res *api.Result) tabular {
	return tabular{columns: res.Columns, rows: res.Rows}
}

// records returns one map per row, for the keyed formats.
func (t tabular) records() []map[string]any {
	out := make([]map[string]any, len(t.rows))
	for i, row := range t.rows {
		rec := make(map[string]any, len(t.columns))
		for j, col := range t.columns {
			var v any
			if j < len(row) {
				v = row[j]
			}
			rec[col] = v
		}
		out[i] = rec
	}
	return out
}

// renderResult writes a query result. Results the backend did not shape as
// rows are written as indented JSON (or YAML) as-is.
func renderResult(w io.Writer, res *api.Result, format, footer string) error {
	if !res.Tabular() {
		var v any
		if len(res.Raw) > 0 {
			if err := json.Unmarshal(res.Raw, &v); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
		}
		if format == "yaml" {
			return yaml.NewEncoder(w).Encode(v)
		}
		return renderJSON(w, v)
	}
	return renderTabular(w, resultTabular(res), format, footer)
}

func renderTabular(w io.Writer, data tabular, format, footer string) error {
	switch format {
	case "json":
		return renderJSON(w, data.records())
	case "yaml":
		return renderYAML(w, data)
	case "csv":
		t := newTableWriter(w, data)
		t.RenderCSV()
		return nil
	case "md", "markdown":
		if len(data.rows) == 0 {
			_, _ = fmt.Fprintln(w, footer)
			return nil
		}
		t := newTableWriter(w, data)
		t.RenderMarkdown()
		return nil
	default:
		return renderTable(w, data, footer)
	}
}

func newTableWriter(w io.Writer, data tabular) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(data.columns))
	for i, col := range data.columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range data.rows {
		row := make(table.Row, len(data.columns))
		for i := range data.columns {
			var v any
			if i < len(r) {
				v = r[i]
			}
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	return t
}

func renderTable(w io.Writer, data tabular, footer string) error {
	if len(data.rows) > 0 {
		newTableWriter(w, data).Render()
	}
	if footer != "" {
		_, _ = fmt.Fprintf(w, "(%s)\n", footer)
	}
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderYAML writes rows as a sequence of mappings, keeping column order.
func renderYAML(w io.Writer, data tabular) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range data.rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for i, col := range data.columns {
			var v any
			if i < len(r) {
				v = r[i]
			}
			var val yaml.Node
			if err := val.Encode(v); err != nil {
				return fmt.Errorf("encode %s: %w", col, err)
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: col},
				&val,
			)
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		// JSON numbers arrive as float64; print integers without a fraction.
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
