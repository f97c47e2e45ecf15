package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
)

// PostgresOptions describes a server when no DSN is given.
type PostgresOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Options  map[string]string
}

// BuildPostgresDSN constructs a key=value PostgreSQL connection string.
func BuildPostgresDSN(o PostgresOptions) string {
	host := o.Host
	if host == "" {
		host = "localhost"
	}

	port := o.Port
	if port == 0 {
		port = 5432
	}

	database := o.Database
	if database == "" {
		database = "postgres"
	}

	sslmode := "disable"
	if mode, ok := o.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, database, sslmode)
	if o.User != "" {
		dsn += fmt.Sprintf(" user=%s", o.User)
	}
	if o.Password != "" {
		dsn += fmt.Sprintf(" password=%s", o.Password)
	}
	return dsn
}

// PostgresDriver serves the databases of one PostgreSQL server.
type PostgresDriver struct {
	defaultDB string
	maxRows   int
	logger    *slog.Logger
	open      func(database string) (*sql.DB, error)

	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewPostgresDriver parses dsn and connects lazily, one pool per database.
func NewPostgresDriver(dsn string, maxRows int, logger *slog.Logger) (*PostgresDriver, error) {
	base, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	open := func(database string) (*sql.DB, error) {
		cfg := base.Copy()
		if database != "" {
			cfg.Database = database
		}
		return stdlib.OpenDB(*cfg), nil
	}
	return newPostgresDriver(open, base.Database, maxRows, logger), nil
}

func newPostgresDriver(open func(string) (*sql.DB, error), defaultDB string, maxRows int, logger *slog.Logger) *PostgresDriver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresDriver{
		defaultDB: defaultDB,
		maxRows:   maxRows,
		logger:    logger,
		open:      open,
		conns:     map[string]*sql.DB{},
	}
}

// Name returns the driver name.
func (d *PostgresDriver) Name() string { return "postgres" }

func (d *PostgresDriver) conn(database string) (*sql.DB, error) {
	if database == "" {
		database = d.defaultDB
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if db, ok := d.conns[database]; ok {
		return db, nil
	}
	db, err := d.open(database)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", database, err)
	}
	d.logger.Debug("postgres pool opened", "database", database)
	d.conns[database] = db
	return db, nil
}

// classify maps server errors onto the driver error kinds.
func classify(database string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "3D000": // invalid_catalog_name
			return fmt.Errorf("%w: %s", ErrDatabaseNotFound, database)
		case "3F000": // invalid_schema_name
			return fmt.Errorf("%w: %s", ErrSchemaNotFound, pgErr.Message)
		}
		return &QueryError{Err: err}
	}
	return err
}

// Databases lists the connectable, non-template databases.
func (d *PostgresDriver) Databases(ctx context.Context) ([]DatabaseInfo, error) {
	db, err := d.conn("")
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT oid::bigint, datname FROM pg_database
		WHERE NOT datistemplate AND datallowconn
		ORDER BY datname`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []DatabaseInfo{}
	for rows.Next() {
		info := DatabaseInfo{Schemas: map[string]int64{}}
		if err := rows.Scan(&info.ID, &info.Name); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Schemas lists the user schemas of database with their relations and
// functions.
func (d *PostgresDriver) Schemas(ctx context.Context, database string) ([]SchemaInfo, error) {
	db, err := d.conn(database)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT n.oid::bigint, n.nspname,
			(SELECT oid::bigint FROM pg_database WHERE datname = current_database()),
			COALESCE((SELECT json_object_agg(c.relname, c.oid::bigint) FROM pg_class c
				WHERE c.relnamespace = n.oid AND c.relkind IN ('r', 'p', 'v', 'm')), '{}')::text,
			COALESCE((SELECT json_object_agg(p.proname, p.oid::bigint) FROM pg_proc p
				WHERE p.pronamespace = n.oid), '{}')::text
		FROM pg_namespace n
		WHERE n.nspname NOT LIKE 'pg\_%' AND n.nspname <> 'information_schema'
		ORDER BY n.nspname`)
	if err != nil {
		return nil, classify(database, err)
	}
	defer func() { _ = rows.Close() }()

	out := []SchemaInfo{}
	for rows.Next() {
		var s SchemaInfo
		var tables, funcs string
		if err := rows.Scan(&s.ID, &s.Name, &s.DBID, &tables, &funcs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tables), &s.Tables); err != nil {
			return nil, fmt.Errorf("decode tables of %s: %w", s.Name, err)
		}
		if err := json.Unmarshal([]byte(funcs), &s.Functions); err != nil {
			return nil, fmt.Errorf("decode functions of %s: %w", s.Name, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Tables describes the ordinary and partitioned tables of schema.
func (d *PostgresDriver) Tables(ctx context.Context, database, schema string) ([]TableInfo, error) {
	db, err := d.conn(database)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, schema).Scan(&exists); err != nil {
		return nil, classify(database, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, schema)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT c.oid::bigint, c.relname, c.relnamespace::bigint,
			GREATEST(c.reltuples, 0)::bigint, c.relpages::bigint,
			current_setting('block_size')::bigint
		FROM pg_class c JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('r', 'p')
		ORDER BY c.relname`, schema)
	if err != nil {
		return nil, classify(database, err)
	}
	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.ID, &t.Name, &t.Namespace, &t.Tuples, &t.Pages, &t.PageSize); err != nil {
			_ = rows.Close()
			return nil, err
		}
		tables = append(tables, t)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range tables {
		t := &tables[i]
		if t.Columns, err = postgresColumns(ctx, db, t.ID); err != nil {
			return nil, fmt.Errorf("columns of %s: %w", t.Name, err)
		}
		if t.Indexes, err = postgresIndexes(ctx, db, t.ID); err != nil {
			return nil, fmt.Errorf("indexes of %s: %w", t.Name, err)
		}
	}
	return tables, nil
}

func postgresColumns(ctx context.Context, db *sql.DB, relid int64) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod), a.attlen, a.attnotnull, a.atthasdef
		FROM pg_attribute a
		WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, relid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols := []ColumnInfo{}
	for rows.Next() {
		var c ColumnInfo
		var typ string
		var attlen int
		if err := rows.Scan(&c.Name, &typ, &attlen, &c.NotNull, &c.HasDef); err != nil {
			return nil, err
		}
		c.TypeID = int(catalog.TypeTagFor(typ))
		c.Len = attlen
		if n := declaredLen(typ); n > 0 {
			c.Len = n
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func postgresIndexes(ctx context.Context, db *sql.DB, relid int64) ([]IndexInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT i.indexrelid::bigint, ic.relname, am.amname,
			GREATEST(ic.reltuples, 0)::bigint, i.indisprimary, i.indkey::text,
			pg_relation_filepath(i.indexrelid)
		FROM pg_index i
		JOIN pg_class ic ON ic.oid = i.indexrelid
		JOIN pg_am am ON am.oid = ic.relam
		WHERE i.indrelid = $1
		ORDER BY ic.relname`, relid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	idx := []IndexInfo{}
	for rows.Next() {
		var x IndexInfo
		var am, indkey string
		var file sql.NullString
		if err := rows.Scan(&x.ID, &x.Name, &am, &x.Tuples, &x.IsPrimary, &indkey, &file); err != nil {
			return nil, err
		}
		x.Type = int(indexKindFor(am))
		x.File = file.String
		x.Columns = parseIndKey(indkey)
		idx = append(idx, x)
	}
	return idx, rows.Err()
}

func indexKindFor(am string) catalog.IndexKind {
	switch am {
	case "btree":
		return catalog.IndexBTree
	case "hash":
		return catalog.IndexHash
	case "gist", "spgist":
		return catalog.IndexRTree
	default:
		return catalog.IndexSequential
	}
}

// parseIndKey turns an int2vector such as "1 3" into zero-based column
// positions. Expression columns (0) are skipped.
func parseIndKey(s string) []int {
	cols := []int{}
	for _, f := range strings.Fields(s) {
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			continue
		}
		cols = append(cols, n-1)
	}
	return cols
}

// Execute runs query on database. When schema is set it becomes the search
// path for the duration of the statement.
func (d *PostgresDriver) Execute(ctx context.Context, database, schema, query string) (*QueryResult, error) {
	db, err := d.conn(database)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(database, err)
	}
	defer func() { _ = tx.Rollback() }()

	if schema != "" {
		if _, err := tx.ExecContext(ctx, `SELECT set_config('search_path', $1, true)`, quoteIdent(schema)); err != nil {
			return nil, classify(database, err)
		}
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(database, err)
	}
	res, err := collectRows(rows, d.maxRows)
	_ = rows.Close()
	if err != nil {
		return nil, classify(database, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(database, err)
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res, nil
}

// Close closes every pool.
func (d *PostgresDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for name, db := range d.conns {
		errs = append(errs, db.Close())
		delete(d.conns, name)
	}
	return errors.Join(errs...)
}
