package devserver

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		opts     PostgresOptions
		expected string
	}{
		{
			name: "credentials",
			opts: PostgresOptions{
				Host:     "localhost",
				Port:     5432,
				Database: "shop",
				User:     "shell",
				Password: "secret",
			},
			expected: "host=localhost port=5432 dbname=shop sslmode=disable user=shell password=secret",
		},
		{
			name: "sslmode option",
			opts: PostgresOptions{
				Host:    "db.internal",
				User:    "reader",
				Options: map[string]string{"sslmode": "verify-full"},
			},
			expected: "host=db.internal port=5432 dbname=postgres sslmode=verify-full user=reader",
		},
		{
			name:     "all defaults",
			opts:     PostgresOptions{},
			expected: "host=localhost port=5432 dbname=postgres sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildPostgresDSN(tt.opts))
		})
	}
}

func TestNewPostgresDriver_InvalidDSN(t *testing.T) {
	_, err := NewPostgresDriver("port=notanumber", 0, nil)
	assert.ErrorContains(t, err, "parse postgres dsn")
}

func setupPostgresDriver(t *testing.T) (*PostgresDriver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	d := newPostgresDriver(func(string) (*sql.DB, error) {
		return db, nil
	}, "postgres", 0, nil)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return d, mock
}

func TestPostgresDriver_Databases(t *testing.T) {
	d, mock := setupPostgresDriver(t)

	mock.ExpectQuery("FROM pg_database").WillReturnRows(
		sqlmock.NewRows([]string{"oid", "datname"}).
			AddRow(int64(16384), "app").
			AddRow(int64(5), "postgres"),
	)

	dbs, err := d.Databases(context.Background())
	require.NoError(t, err)
	require.Len(t, dbs, 2)
	assert.Equal(t, DatabaseInfo{ID: 16384, Name: "app", Schemas: map[string]int64{}}, dbs[0])
}

func TestPostgresDriver_Schemas(t *testing.T) {
	d, mock := setupPostgresDriver(t)

	mock.ExpectQuery("FROM pg_namespace n").WillReturnRows(
		sqlmock.NewRows([]string{"oid", "nspname", "dboid", "tables", "functions"}).
			AddRow(int64(2200), "public", int64(16384), `{"users": 16400, "orders": 16410}`, `{}`).
			AddRow(int64(16500), "sales", int64(16384), `{}`, `{"total": 16600}`),
	)

	schemas, err := d.Schemas(context.Background(), "app")
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, SchemaInfo{
		ID:        2200,
		Name:      "public",
		DBID:      16384,
		Tables:    map[string]int64{"users": 16400, "orders": 16410},
		Functions: map[string]int64{},
	}, schemas[0])
	assert.Equal(t, map[string]int64{"total": 16600}, schemas[1].Functions)
}

func TestPostgresDriver_SchemasUnknownDatabase(t *testing.T) {
	d, mock := setupPostgresDriver(t)

	mock.ExpectQuery("FROM pg_namespace n").WillReturnError(&pgconn.PgError{
		Code:    "3D000",
		Message: `database "nope" does not exist`,
	})

	_, err := d.Schemas(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)
}

func TestPostgresDriver_Tables(t *testing.T) {
	d, mock := setupPostgresDriver(t)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("FROM pg_class c JOIN pg_namespace n").WithArgs("public").WillReturnRows(
		sqlmock.NewRows([]string{"oid", "relname", "relnamespace", "reltuples", "relpages", "block_size"}).
			AddRow(int64(16400), "users", int64(2200), int64(42), int64(1), int64(8192)),
	)
	mock.ExpectQuery("FROM pg_attribute a").WithArgs(int64(16400)).WillReturnRows(
		sqlmock.NewRows([]string{"attname", "format_type", "attlen", "attnotnull", "atthasdef"}).
			AddRow("id", "integer", 4, true, true).
			AddRow("email", "character varying(255)", -1, true, false).
			AddRow("meta", "jsonb", -1, false, false),
	)
	mock.ExpectQuery("FROM pg_index i").WithArgs(int64(16400)).WillReturnRows(
		sqlmock.NewRows([]string{"indexrelid", "relname", "amname", "reltuples", "indisprimary", "indkey", "filepath"}).
			AddRow(int64(16405), "users_pkey", "btree", int64(42), true, "1", "base/16384/16405").
			AddRow(int64(16406), "users_email_hash", "hash", int64(42), false, "2", nil),
	)

	tables, err := d.Tables(context.Background(), "app", "public")
	require.NoError(t, err)
	require.Len(t, tables, 1)

	users := tables[0]
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, int64(42), users.Tuples)
	assert.Equal(t, int64(8192), users.PageSize)
	assert.Equal(t, []ColumnInfo{
		{Name: "id", TypeID: int(catalog.TypeInt), Len: 4, NotNull: true, HasDef: true},
		{Name: "email", TypeID: int(catalog.TypeVarchar), Len: 255, NotNull: true},
		{Name: "meta", TypeID: int(catalog.TypeJSON), Len: -1},
	}, users.Columns)
	assert.Equal(t, []IndexInfo{
		{ID: 16405, Type: int(catalog.IndexBTree), Name: "users_pkey", File: "base/16384/16405", Tuples: 42, Columns: []int{0}, IsPrimary: true},
		{ID: 16406, Type: int(catalog.IndexHash), Name: "users_email_hash", Tuples: 42, Columns: []int{1}},
	}, users.Indexes)
}

func TestPostgresDriver_TablesUnknownSchema(t *testing.T) {
	d, mock := setupPostgresDriver(t)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := d.Tables(context.Background(), "app", "ghost")
	assert.ErrorIs(t, err, ErrSchemaNotFound)
}

func TestPostgresDriver_Execute(t *testing.T) {
	tests := []struct {
		name      string
		schema    string
		setupMock func(mock sqlmock.Sqlmock)
		wantRows  [][]any
		wantQuery bool
	}{
		{
			name: "default search path",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT 1 AS one").
					WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(int64(1)))
				mock.ExpectCommit()
			},
			wantRows: [][]any{{int64(1)}},
		},
		{
			name:   "schema sets search path",
			schema: "sales",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("set_config").WithArgs(`"sales"`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery("SELECT 1 AS one").
					WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(int64(1)))
				mock.ExpectCommit()
			},
			wantRows: [][]any{{int64(1)}},
		},
		{
			name: "rejected query",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT 1 AS one").
					WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error"})
				mock.ExpectRollback()
			},
			wantQuery: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := setupPostgresDriver(t)
			tt.setupMock(mock)

			res, err := d.Execute(context.Background(), "app", tt.schema, "SELECT 1 AS one")
			if tt.wantQuery {
				var qe *QueryError
				require.ErrorAs(t, err, &qe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"one"}, res.Columns)
			assert.Equal(t, tt.wantRows, res.Rows)
		})
	}
}

func TestPostgresDriver_Close(t *testing.T) {
	d, mock := setupPostgresDriver(t)

	mock.ExpectQuery("FROM pg_database").WillReturnRows(sqlmock.NewRows([]string{"oid", "datname"}))
	mock.ExpectClose()

	_, err := d.Databases(context.Background())
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}

func TestParseIndKey(t *testing.T) {
	assert.Equal(t, []int{0, 2}, parseIndKey("1 3"))
	assert.Equal(t, []int{1}, parseIndKey("0 2"))
	assert.Equal(t, []int{}, parseIndKey(""))
}
