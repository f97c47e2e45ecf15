package navigator

import (
	"github.com/leapstack-labs/pkshell/internal/fetch"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/selection"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
)

// Display says what a sidebar section shows.
type Display int

// Section displays, in rendering priority order.
const (
	ShowHidden Display = iota
	ShowLoading
	ShowError
	ShowEmpty
	ShowList
)

func (d Display) String() string {
	switch d {
	case ShowLoading:
		return "loading"
	case ShowError:
		return "error"
	case ShowEmpty:
		return "empty"
	case ShowList:
		return "list"
	default:
		return "hidden"
	}
}

// Item is one selectable entry.
type Item struct {
	Name     string
	Selected bool
}

// Section is a list that may be loading, failed or empty instead.
type Section struct {
	Heading string
	Display Display
	// Message is the loading, error or empty text. Empty when Display is
	// ShowList.
	Message string
	Items   []Item
}

// SchemaNode is a schema entry. Tables is set only on the expanded node.
type SchemaNode struct {
	Name     string
	Expanded bool
	Tables   *Section
}

// TableDetail describes the focused table.
type TableDetail struct {
	Name           string
	ColumnsHeading string
	IndexesHeading string
	Columns        []catalog.Column
	Indexes        []catalog.Index
	Tuples         int64
}

// Sidebar is the complete view model of the navigator.
type Sidebar struct {
	// Prompt is the database picker label: the selected name or a
	// placeholder.
	Prompt    string
	Databases Section
	Schemas   Section
	Nodes     []SchemaNode
	Detail    *TableDetail
}

// ExpandedSchema returns the expanded node, if any.
func (s Sidebar) ExpandedSchema() (SchemaNode, bool) {
	for _, n := range s.Nodes {
		if n.Expanded {
			return n, true
		}
	}
	return SchemaNode{}, false
}

// Snapshot is everything the sidebar is derived from.
type Snapshot struct {
	Selection selection.Selection
	Focused   string
	Databases fetch.State[struct{}, []catalog.Database]
	Schemas   fetch.State[string, []catalog.Schema]
	Tables    fetch.State[TableKey, []catalog.Table]
}

// BuildView derives the sidebar from a snapshot. It has no side effects.
func BuildView(s Snapshot, tr *locale.Translator) Sidebar {
	sel := s.Selection
	var view Sidebar

	view.Prompt = tr.T(locale.DatabasePrompt)
	if sel.HasDatabase() {
		view.Prompt = sel.Database
	}

	view.Databases = section(s.Databases.Status, s.Databases.Message, len(s.Databases.Data),
		tr.T(locale.DatabasesLoading), tr.T(locale.DatabasesEmpty))
	for _, name := range catalog.DatabaseNames(s.Databases.Data) {
		view.Databases.Items = append(view.Databases.Items, Item{Name: name, Selected: name == sel.Database})
	}

	if !sel.HasDatabase() {
		view.Schemas = Section{Display: ShowHidden, Message: tr.T(locale.SchemasIdle)}
		return view
	}

	schemas := s.Schemas
	if schemas.Status != fetch.Idle && schemas.Key != sel.Database {
		// Resource lags the store; show it as loading rather than another
		// database's schemas.
		schemas = fetch.State[string, []catalog.Schema]{Status: fetch.Loading}
	}
	view.Schemas = section(schemas.Status, schemas.Message, len(schemas.Data),
		tr.T(locale.SchemasLoading), tr.T(locale.SchemasEmpty))
	view.Schemas.Heading = sel.Database

	for _, sch := range schemas.Data {
		node := SchemaNode{Name: sch.Name}
		view.Schemas.Items = append(view.Schemas.Items, Item{Name: sch.Name, Selected: sch.Name == sel.Schema})
		if sch.Name == sel.Schema {
			node.Expanded = true
			tables, detail := tableSection(s, tr)
			node.Tables = &tables
			view.Detail = detail
		}
		view.Nodes = append(view.Nodes, node)
	}
	return view
}

func tableSection(s Snapshot, tr *locale.Translator) (Section, *TableDetail) {
	sel := s.Selection
	st := s.Tables
	if st.Key != (TableKey{Database: sel.Database, Schema: sel.Schema}) {
		st = fetch.State[TableKey, []catalog.Table]{Status: fetch.Loading}
	}

	sec := section(st.Status, st.Message, len(st.Data),
		tr.T(locale.TablesLoading), tr.T(locale.TablesEmpty))
	sec.Heading = tr.T(locale.TablesHeading)
	if sec.Display != ShowList {
		return sec, nil
	}

	var detail *TableDetail
	for _, t := range st.Data {
		focused := t.Name == s.Focused
		sec.Items = append(sec.Items, Item{Name: t.Name, Selected: focused})
		if focused {
			detail = &TableDetail{
				Name:           t.Name,
				ColumnsHeading: tr.T(locale.ColumnsHeading),
				IndexesHeading: tr.T(locale.IndexesHeading),
				Columns:        t.Columns(),
				Indexes:        t.Indexes(),
				Tuples:         t.Tuples,
			}
		}
	}
	return sec, detail
}

// section applies the loading > error > empty > list priority.
func section(status fetch.Status, errMsg string, n int, loading, empty string) Section {
	switch {
	case status == fetch.Loading:
		return Section{Display: ShowLoading, Message: loading}
	case status == fetch.Failed:
		return Section{Display: ShowError, Message: errMsg}
	case status == fetch.Success && n == 0:
		return Section{Display: ShowEmpty, Message: empty}
	case status == fetch.Success:
		return Section{Display: ShowList}
	default:
		return Section{Display: ShowHidden}
	}
}
