package devserver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/pkshell/pkg/catalog"

	// sqlite driver
	_ "modernc.org/sqlite"
)

// sqliteSchema is the only schema a SQLite database exposes.
const sqliteSchema = "main"

// sqliteExts are the file extensions treated as databases.
var sqliteExts = []string{".db", ".sqlite", ".sqlite3"}

// SQLiteDriver serves every SQLite file in a directory as a database.
type SQLiteDriver struct {
	dir     string
	maxRows int
	logger  *slog.Logger

	mu    sync.RWMutex
	names []string
	files map[string]string
	conns map[string]*sql.DB
}

// NewSQLiteDriver creates the directory if needed and scans it.
func NewSQLiteDriver(dir string, maxRows int, logger *slog.Logger) (*SQLiteDriver, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	d := &SQLiteDriver{
		dir:     dir,
		maxRows: maxRows,
		logger:  logger,
		files:   map[string]string{},
		conns:   map[string]*sql.DB{},
	}
	if err := d.Rescan(); err != nil {
		return nil, err
	}
	return d, nil
}

// Name returns the driver name.
func (d *SQLiteDriver) Name() string { return "sqlite" }

// Dir returns the data directory.
func (d *SQLiteDriver) Dir() string { return d.dir }

// Rescan refreshes the database list from the data directory. Connections to
// removed files are closed.
func (d *SQLiteDriver) Rescan() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("scan data dir: %w", err)
	}

	files := map[string]string{}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isSQLiteFile(e.Name()) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, dup := files[name]; dup {
			continue
		}
		files[name] = filepath.Join(d.dir, e.Name())
		names = append(names, name)
	}
	slices.Sort(names)

	d.mu.Lock()
	defer d.mu.Unlock()
	for name, db := range d.conns {
		if files[name] != d.files[name] {
			_ = db.Close()
			delete(d.conns, name)
		}
	}
	d.names = names
	d.files = files
	d.logger.Debug("data dir scanned", "dir", d.dir, "databases", len(names))
	return nil
}

func isSQLiteFile(name string) bool {
	return slices.Contains(sqliteExts, strings.ToLower(filepath.Ext(name)))
}

// open returns the pooled connection for database name.
func (d *SQLiteDriver) open(name string) (*sql.DB, error) {
	d.mu.RLock()
	db, ok := d.conns[name]
	path, known := d.files[name]
	d.mu.RUnlock()
	if ok {
		return db, nil
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if db, ok := d.conns[name]; ok {
		return db, nil
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	d.conns[name] = db
	return db, nil
}

func (d *SQLiteDriver) dbID(name string) int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(slices.Index(d.names, name) + 1)
}

// Databases lists one database per file.
func (d *SQLiteDriver) Databases(_ context.Context) ([]DatabaseInfo, error) {
	d.mu.RLock()
	names := slices.Clone(d.names)
	files := d.files
	d.mu.RUnlock()

	out := make([]DatabaseInfo, 0, len(names))
	for i, name := range names {
		info := DatabaseInfo{
			ID:      int64(i + 1),
			Name:    name,
			Schemas: map[string]int64{sqliteSchema: 1},
		}
		if st, err := os.Stat(files[name]); err == nil {
			info.CreatedAt = st.ModTime().UTC().Format(time.RFC3339)
		}
		out = append(out, info)
	}
	return out, nil
}

// Schemas returns the single main schema of database.
func (d *SQLiteDriver) Schemas(ctx context.Context, database string) ([]SchemaInfo, error) {
	db, err := d.open(database)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT name, rootpage, type FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' AND name NOT LIKE 'goose_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := map[string]int64{}
	for rows.Next() {
		var name, kind string
		var root int64
		if err := rows.Scan(&name, &root, &kind); err != nil {
			return nil, err
		}
		tables[name] = root
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return []SchemaInfo{{
		ID:        1,
		Name:      sqliteSchema,
		DBID:      d.dbID(database),
		Tables:    tables,
		Functions: map[string]int64{},
	}}, nil
}

// Tables describes every table in the main schema.
func (d *SQLiteDriver) Tables(ctx context.Context, database, schema string) ([]TableInfo, error) {
	if schema != sqliteSchema {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, schema)
	}
	db, err := d.open(database)
	if err != nil {
		return nil, err
	}

	var pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("page size: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT name, rootpage FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE 'goose_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.ID); err != nil {
			_ = rows.Close()
			return nil, err
		}
		t.Namespace = 1
		t.PageSize = pageSize
		tables = append(tables, t)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	file := d.files[database]
	d.mu.RUnlock()

	for i := range tables {
		t := &tables[i]
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", quoteIdent(t.Name))).Scan(&t.Tuples); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.Name, err)
		}
		if t.Columns, err = sqliteColumns(ctx, db, t.Name); err != nil {
			return nil, err
		}
		if t.Indexes, err = sqliteIndexes(ctx, db, t.Name, file, t.Tuples); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols := []ColumnInfo{}
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:    name,
			TypeID:  int(catalog.TypeTagFor(colType)),
			Len:     declaredLen(colType),
			NotNull: notNull == 1 || pk == 1,
			HasDef:  dflt.Valid,
		})
	}
	return cols, rows.Err()
}

func sqliteIndexes(ctx context.Context, db *sql.DB, table, file string, tuples int64) ([]IndexInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", table, err)
	}
	type entry struct {
		name   string
		origin string
	}
	var entries []entry
	for rows.Next() {
		var seq, unique, partial int
		var e entry
		if err := rows.Scan(&seq, &e.name, &unique, &e.origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	idx := []IndexInfo{}
	for i, e := range entries {
		cols, err := sqliteIndexColumns(ctx, db, e.name)
		if err != nil {
			return nil, err
		}
		idx = append(idx, IndexInfo{
			ID:        int64(i + 1),
			Type:      int(catalog.IndexBTree),
			Name:      e.name,
			File:      file,
			Tuples:    tuples,
			Columns:   cols,
			IsPrimary: e.origin == "pk",
		})
	}
	return idx, nil
}

func sqliteIndexColumns(ctx context.Context, db *sql.DB, index string) ([]int, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(index)))
	if err != nil {
		return nil, fmt.Errorf("columns of index %s: %w", index, err)
	}
	defer func() { _ = rows.Close() }()

	cols := []int{}
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, cid)
	}
	return cols, rows.Err()
}

// Execute runs query on database. With no database the first one is used.
func (d *SQLiteDriver) Execute(ctx context.Context, database, _, query string) (*QueryResult, error) {
	if database == "" {
		d.mu.RLock()
		if len(d.names) > 0 {
			database = d.names[0]
		}
		d.mu.RUnlock()
	}
	if database == "" {
		return nil, fmt.Errorf("%w: no databases in %s", ErrDatabaseNotFound, d.dir)
	}
	db, err := d.open(database)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	res, err := collectRows(rows, d.maxRows)
	if err != nil {
		return nil, err
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res, nil
}

// Path returns the file backing database, creating the name if it does not
// exist yet.
func (d *SQLiteDriver) Path(database string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.files[database]; ok {
		return p
	}
	return filepath.Join(d.dir, database+".db")
}

// Close closes every open connection.
func (d *SQLiteDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, db := range d.conns {
		_ = db.Close()
		delete(d.conns, name)
	}
	return nil
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// declaredLen extracts n from a declared type such as VARCHAR(n).
func declaredLen(colType string) int {
	open := strings.IndexByte(colType, '(')
	end := strings.IndexByte(colType, ')')
	if open < 0 || end < open {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(colType[open+1:end], "%d", &n); err != nil {
		return 0
	}
	return n
}
