package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DecodeError reports a backend payload that does not have the expected shape.
type DecodeError struct {
	Resource string // "databases", "schemas", "tables"
	Path     string // location inside the payload, e.g. "[2].tab_columns[0]"
	Reason   string
	Err      error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode ")
	b.WriteString(e.Resource)
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

type wireDatabase struct {
	ID        *int64           `json:"db_id"`
	Name      *string          `json:"db_name"`
	Schemas   map[string]int64 `json:"db_schemas"`
	CreatedAt string           `json:"db_created_at"`
}

type wireSchema struct {
	ID        *int64           `json:"sch_id"`
	Name      *string          `json:"sch_name"`
	DBID      int64            `json:"sch_db_id"`
	Tables    map[string]int64 `json:"sch_tables"`
	Functions map[string]int64 `json:"sch_functions"`
}

type wireColumn struct {
	Name    *string `json:"att_name"`
	TypeID  int     `json:"att_type_id"`
	Len     int     `json:"att_len"`
	NotNull bool    `json:"att_not_null"`
	HasDef  bool    `json:"att_has_def"`
}

type wireIndex struct {
	ID        int64   `json:"idx_id"`
	Type      int     `json:"idx_type"`
	Name      *string `json:"idx_name"`
	File      string  `json:"idx_file"`
	Tuples    int64   `json:"idx_tuples"`
	Columns   []int   `json:"idx_columns"`
	IsPrimary bool    `json:"idx_is_primary"`
}

type wireTable struct {
	ID        *int64       `json:"tab_id"`
	Name      *string      `json:"tab_name"`
	Namespace int64        `json:"tab_namespace"`
	Tuples    int64        `json:"tab_tuples"`
	Pages     int64        `json:"tab_pages"`
	PageSize  int64        `json:"tab_page_size"`
	Columns   []wireColumn `json:"tab_columns"`
	Indexes   []wireIndex  `json:"tab_indexes"`
}

// createdAtLayouts covers RFC 3339 and the naive ISO timestamps some
// backends emit without a zone.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// DecodeDatabases decodes a GET /databases payload. Both a bare array and a
// {"data": [...]} envelope are accepted, and entries may be objects or bare
// database names.
func DecodeDatabases(body []byte) ([]Database, error) {
	items, err := decodeArray("databases", unwrapEnvelope(body))
	if err != nil {
		return nil, err
	}

	dbs := make([]Database, 0, len(items))
	for i, raw := range items {
		path := fmt.Sprintf("[%d]", i)
		raw = bytes.TrimSpace(raw)

		if len(raw) > 0 && raw[0] == '"' {
			var name string
			if err := json.Unmarshal(raw, &name); err != nil {
				return nil, &DecodeError{Resource: "databases", Path: path, Reason: "invalid name", Err: err}
			}
			if strings.TrimSpace(name) == "" {
				return nil, &DecodeError{Resource: "databases", Path: path, Reason: "empty database name"}
			}
			dbs = append(dbs, NewDatabase(0, name, nil, time.Time{}))
			continue
		}

		var w wireDatabase
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &DecodeError{Resource: "databases", Path: path, Reason: "expected object or string", Err: err}
		}
		if w.Name == nil || strings.TrimSpace(*w.Name) == "" {
			return nil, &DecodeError{Resource: "databases", Path: path, Reason: "missing db_name"}
		}
		var id int64
		if w.ID != nil {
			id = *w.ID
		}
		created, err := parseCreatedAt(w.CreatedAt)
		if err != nil {
			return nil, &DecodeError{Resource: "databases", Path: path + ".db_created_at", Reason: "invalid timestamp", Err: err}
		}
		dbs = append(dbs, NewDatabase(id, *w.Name, w.Schemas, created))
	}
	return dbs, nil
}

// DecodeSchemas decodes a GET /{database}/schemas payload.
func DecodeSchemas(body []byte) ([]Schema, error) {
	items, err := decodeArray("schemas", unwrapEnvelope(body))
	if err != nil {
		return nil, err
	}

	schemas := make([]Schema, 0, len(items))
	for i, raw := range items {
		path := fmt.Sprintf("[%d]", i)
		var w wireSchema
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &DecodeError{Resource: "schemas", Path: path, Reason: "expected object", Err: err}
		}
		if w.ID == nil {
			return nil, &DecodeError{Resource: "schemas", Path: path, Reason: "missing sch_id"}
		}
		if w.Name == nil || strings.TrimSpace(*w.Name) == "" {
			return nil, &DecodeError{Resource: "schemas", Path: path, Reason: "missing sch_name"}
		}
		schemas = append(schemas, NewSchema(*w.ID, *w.Name, w.DBID, w.Tables, w.Functions))
	}
	return schemas, nil
}

// DecodeTables decodes a GET /{database}/{schema}/tables payload.
func DecodeTables(body []byte) ([]Table, error) {
	items, err := decodeArray("tables", unwrapEnvelope(body))
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(items))
	for i, raw := range items {
		path := fmt.Sprintf("[%d]", i)
		var w wireTable
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &DecodeError{Resource: "tables", Path: path, Reason: "expected object", Err: err}
		}
		if w.ID == nil {
			return nil, &DecodeError{Resource: "tables", Path: path, Reason: "missing tab_id"}
		}
		if w.Name == nil || strings.TrimSpace(*w.Name) == "" {
			return nil, &DecodeError{Resource: "tables", Path: path, Reason: "missing tab_name"}
		}

		cols := make([]Column, 0, len(w.Columns))
		for j, c := range w.Columns {
			if c.Name == nil || *c.Name == "" {
				return nil, &DecodeError{Resource: "tables", Path: fmt.Sprintf("%s.tab_columns[%d]", path, j), Reason: "missing att_name"}
			}
			cols = append(cols, Column{
				Name:       *c.Name,
				TypeID:     TypeTag(c.TypeID),
				Len:        c.Len,
				NotNull:    c.NotNull,
				HasDefault: c.HasDef,
			})
		}

		idxs := make([]Index, 0, len(w.Indexes))
		for j, x := range w.Indexes {
			if x.Name == nil || *x.Name == "" {
				return nil, &DecodeError{Resource: "tables", Path: fmt.Sprintf("%s.tab_indexes[%d]", path, j), Reason: "missing idx_name"}
			}
			idxs = append(idxs, NewIndex(x.ID, IndexKind(x.Type), *x.Name, x.File, x.Tuples, x.Columns, x.IsPrimary))
		}

		tables = append(tables, NewTable(*w.ID, *w.Name, w.Namespace, w.Tuples, w.Pages, w.PageSize, cols, idxs))
	}
	return tables, nil
}

// unwrapEnvelope returns the "data" member of a {"data": ...} object, or the
// body unchanged when it is not such an envelope.
func unwrapEnvelope(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Data == nil {
		return trimmed
	}
	return env.Data
}

func decodeArray(resource string, body []byte) ([]json.RawMessage, error) {
	if len(body) == 0 {
		return nil, &DecodeError{Resource: resource, Reason: "empty body"}
	}
	if bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &DecodeError{Resource: resource, Reason: "expected array", Err: err}
	}
	return items, nil
}

func parseCreatedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range createdAtLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
