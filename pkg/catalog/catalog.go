package catalog

import (
	"maps"
	"slices"
	"time"
)

// Database describes a database known to the backend.
type Database struct {
	ID        int64
	Name      string
	schemas   map[string]int64
	CreatedAt time.Time
}

// NewDatabase creates a Database descriptor. The schema map is copied.
func NewDatabase(id int64, name string, schemas map[string]int64, createdAt time.Time) Database {
	return Database{ID: id, Name: name, schemas: maps.Clone(schemas), CreatedAt: createdAt}
}

// Schemas returns the schema name to schema id mapping.
func (d Database) Schemas() map[string]int64 {
	return maps.Clone(d.schemas)
}

// Schema describes a namespace inside a database.
type Schema struct {
	ID         int64
	Name       string
	DatabaseID int64
	tables     map[string]int64
	functions  map[string]int64
}

// NewSchema creates a Schema descriptor. Maps are copied.
func NewSchema(id int64, name string, dbID int64, tables, functions map[string]int64) Schema {
	return Schema{
		ID:         id,
		Name:       name,
		DatabaseID: dbID,
		tables:     maps.Clone(tables),
		functions:  maps.Clone(functions),
	}
}

// Tables returns the table name to table id mapping.
func (s Schema) Tables() map[string]int64 {
	return maps.Clone(s.tables)
}

// Functions returns the function name to function id mapping.
func (s Schema) Functions() map[string]int64 {
	return maps.Clone(s.functions)
}

// Column describes a table attribute.
type Column struct {
	Name       string
	TypeID     TypeTag
	Len        int
	NotNull    bool
	HasDefault bool
}

// Index describes a table index.
type Index struct {
	ID        int64
	Kind      IndexKind
	Name      string
	File      string
	Tuples    int64
	columns   []int
	IsPrimary bool
}

// NewIndex creates an Index descriptor. The column positions are copied.
func NewIndex(id int64, kind IndexKind, name, file string, tuples int64, columns []int, primary bool) Index {
	return Index{
		ID:        id,
		Kind:      kind,
		Name:      name,
		File:      file,
		Tuples:    tuples,
		columns:   slices.Clone(columns),
		IsPrimary: primary,
	}
}

// Columns returns the positions of the indexed columns.
func (i Index) Columns() []int {
	return slices.Clone(i.columns)
}

// Table describes a relation and its physical layout.
type Table struct {
	ID        int64
	Name      string
	Namespace int64
	Tuples    int64
	Pages     int64
	PageSize  int64
	columns   []Column
	indexes   []Index
}

// NewTable creates a Table descriptor. Columns and indexes are copied.
func NewTable(id int64, name string, namespace int64, tuples, pages, pageSize int64, columns []Column, indexes []Index) Table {
	return Table{
		ID:        id,
		Name:      name,
		Namespace: namespace,
		Tuples:    tuples,
		Pages:     pages,
		PageSize:  pageSize,
		columns:   slices.Clone(columns),
		indexes:   slices.Clone(indexes),
	}
}

// Columns returns the table's columns in ordinal order.
func (t Table) Columns() []Column {
	return slices.Clone(t.columns)
}

// Indexes returns the table's indexes.
func (t Table) Indexes() []Index {
	return slices.Clone(t.indexes)
}

// TableNames projects a table list onto its names, preserving order.
func TableNames(tables []Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// SchemaNames projects a schema list onto its names, preserving order.
func SchemaNames(schemas []Schema) []string {
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	return names
}

// DatabaseNames projects a database list onto its names, preserving order.
func DatabaseNames(dbs []Database) []string {
	names := make([]string, len(dbs))
	for i, d := range dbs {
		names[i] = d.Name
	}
	return names
}
