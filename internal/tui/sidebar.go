package tui

import (
	"strings"

	"github.com/leapstack-labs/pkshell/internal/navigator"
)

type rowKind int

const (
	rowText rowKind = iota
	rowHeading
	rowDatabase
	rowSchema
	rowTable
)

// row is one line of the sidebar. Only database, schema and table rows can
// take the cursor.
type row struct {
	kind     rowKind
	name     string
	selected bool
	expanded bool
	muted    bool
	failed   bool
}

func (r row) selectable() bool {
	return r.kind >= rowDatabase
}

// sidebarRows flattens the view model into display order.
func sidebarRows(v navigator.Sidebar) []row {
	rows := []row{{kind: rowHeading, name: v.Prompt}}
	rows = appendSection(rows, v.Databases, rowDatabase)

	if v.Schemas.Display == navigator.ShowHidden {
		if v.Schemas.Message != "" {
			rows = append(rows, row{kind: rowText, name: v.Schemas.Message, muted: true})
		}
		return rows
	}

	rows = append(rows, row{kind: rowHeading, name: v.Schemas.Heading})
	if v.Schemas.Display != navigator.ShowList {
		return appendSection(rows, v.Schemas, rowSchema)
	}
	for _, n := range v.Nodes {
		rows = append(rows, row{kind: rowSchema, name: n.Name, selected: n.Expanded, expanded: n.Expanded})
		if n.Tables != nil {
			rows = append(rows, row{kind: rowText, name: "  " + n.Tables.Heading})
			rows = appendSection(rows, *n.Tables, rowTable)
		}
	}
	return rows
}

func appendSection(rows []row, s navigator.Section, kind rowKind) []row {
	switch s.Display {
	case navigator.ShowHidden:
		return rows
	case navigator.ShowList:
		for _, it := range s.Items {
			rows = append(rows, row{kind: kind, name: it.Name, selected: it.Selected})
		}
		return rows
	default:
		return append(rows, row{
			kind:   rowText,
			name:   s.Message,
			muted:  s.Display != navigator.ShowError,
			failed: s.Display == navigator.ShowError,
		})
	}
}

// moveCursor returns the next selectable row from cur in direction dir, or
// cur when there is none.
func moveCursor(rows []row, cur, dir int) int {
	for i := cur + dir; i >= 0 && i < len(rows); i += dir {
		if rows[i].selectable() {
			return i
		}
	}
	return cur
}

// clampCursor keeps the cursor on a selectable row after the rows changed.
func clampCursor(rows []row, cur int) int {
	if cur >= len(rows) {
		cur = len(rows) - 1
	}
	if cur >= 0 && rows[cur].selectable() {
		return cur
	}
	if next := moveCursor(rows, cur, -1); next != cur {
		return next
	}
	if cur < 0 {
		cur = -1
	}
	if next := moveCursor(rows, cur, 1); next != cur {
		return next
	}
	return 0
}

func (m *Model) renderSidebar() string {
	var b strings.Builder
	for i, r := range m.rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.renderRow(r, i == m.cursor && m.focus == focusSidebar))
	}
	return b.String()
}

func (m *Model) renderRow(r row, atCursor bool) string {
	s := m.styles
	var line string
	switch r.kind {
	case rowHeading:
		return s.Header.Render(r.name)
	case rowText:
		if r.failed {
			return s.Error.Render("  " + r.name)
		}
		if r.muted {
			return s.Muted.Render("  " + r.name)
		}
		return "  " + r.name
	case rowDatabase:
		line = "  " + r.name
	case rowSchema:
		marker := "▸"
		if r.expanded {
			marker = "▾"
		}
		line = "  " + marker + " " + r.name
	case rowTable:
		line = "      " + r.name
	}
	if atCursor {
		line = ">" + line[1:]
	}
	if r.selected {
		return s.Selected.Render(line)
	}
	return line
}
