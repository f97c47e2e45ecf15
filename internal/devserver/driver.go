// Package devserver is a reference implementation of the catalog backend.
//
// It serves the HTTP contract the shell consumes (database, schema and table
// listings plus query execution) over real databases, so the shell can be
// run and tested end to end without the original backend.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDatabaseNotFound is returned for an unknown database name.
	ErrDatabaseNotFound = errors.New("database not found")
	// ErrSchemaNotFound is returned for an unknown schema name.
	ErrSchemaNotFound = errors.New("schema not found")
)

// QueryError is a query the database rejected. It maps to HTTP 400.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// Driver exposes a database server through the catalog contract.
type Driver interface {
	Name() string
	Databases(ctx context.Context) ([]DatabaseInfo, error)
	Schemas(ctx context.Context, database string) ([]SchemaInfo, error)
	Tables(ctx context.Context, database, schema string) ([]TableInfo, error)
	// Execute runs query on database. An empty database means the driver's
	// default. Schema, when set, becomes the search path where supported.
	Execute(ctx context.Context, database, schema, query string) (*QueryResult, error)
	Close() error
}

// Rescanner is implemented by drivers whose database list can change on disk.
type Rescanner interface {
	Rescan() error
}

// DatabaseInfo is the wire form of a database.
type DatabaseInfo struct {
	ID        int64            `json:"db_id"`
	Name      string           `json:"db_name"`
	Schemas   map[string]int64 `json:"db_schemas"`
	CreatedAt string           `json:"db_created_at,omitempty"`
}

// SchemaInfo is the wire form of a schema.
type SchemaInfo struct {
	ID        int64            `json:"sch_id"`
	Name      string           `json:"sch_name"`
	DBID      int64            `json:"sch_db_id"`
	Tables    map[string]int64 `json:"sch_tables"`
	Functions map[string]int64 `json:"sch_functions"`
}

// ColumnInfo is the wire form of a column.
type ColumnInfo struct {
	Name    string `json:"att_name"`
	TypeID  int    `json:"att_type_id"`
	Len     int    `json:"att_len"`
	NotNull bool   `json:"att_not_null"`
	HasDef  bool   `json:"att_has_def"`
}

// IndexInfo is the wire form of an index.
type IndexInfo struct {
	ID        int64  `json:"idx_id"`
	Type      int    `json:"idx_type"`
	Name      string `json:"idx_name"`
	File      string `json:"idx_file"`
	Tuples    int64  `json:"idx_tuples"`
	Columns   []int  `json:"idx_columns"`
	IsPrimary bool   `json:"idx_is_primary"`
}

// TableInfo is the wire form of a table.
type TableInfo struct {
	ID        int64        `json:"tab_id"`
	Name      string       `json:"tab_name"`
	Namespace int64        `json:"tab_namespace"`
	Tuples    int64        `json:"tab_tuples"`
	Pages     int64        `json:"tab_pages"`
	PageSize  int64        `json:"tab_page_size"`
	Columns   []ColumnInfo `json:"tab_columns"`
	Indexes   []IndexInfo  `json:"tab_indexes"`
}

// QueryResult is the body returned by POST /execute.
type QueryResult struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	DurationMS int64    `json:"duration_ms"`
}

// rowScanner is the subset of *sql.Rows used to build results.
type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// collectRows reads every row, converting driver values to JSON-friendly
// ones.
func collectRows(rows rowScanner, maxRows int) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			break
		}
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = jsonValue(v)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case [16]byte:
		// pgx scans uuid columns into a byte array.
		return uuid.UUID(x).String()
	default:
		return v
	}
}
