package devserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDriver_SeedDemo(t *testing.T) {
	d, err := NewSQLiteDriver(t.TempDir(), 0, nil)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	ctx := context.Background()

	require.NoError(t, d.SeedDemo(ctx))
	// Seeding twice is a no-op.
	require.NoError(t, d.SeedDemo(ctx))

	dbs, err := d.Databases(ctx)
	require.NoError(t, err)
	require.Len(t, dbs, 1)
	assert.Equal(t, DemoDatabase, dbs[0].Name)

	tables, err := d.Tables(ctx, DemoDatabase, "main")
	require.NoError(t, err)
	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"customers", "orders", "products"}, names)

	orders := tables[1]
	require.Len(t, orders.Indexes, 1)
	assert.Equal(t, "orders_customer_idx", orders.Indexes[0].Name)
	assert.Equal(t, []int{1, 4}, orders.Indexes[0].Columns)

	res, err := d.Execute(ctx, DemoDatabase, "", "SELECT name FROM customers ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, []any{"Ada Lovelace"}, res.Rows[0])
}

func TestSQLiteDriver_Migrate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inventory"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "inventory", "00001_init.sql"), []byte(`-- +goose Up
CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT NOT NULL);
INSERT INTO items (label) VALUES ('bolt'), ('nut');

-- +goose Down
DROP TABLE items;
`), 0o600))
	// Files next to the database directories are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("x"), 0o600))

	d, err := NewSQLiteDriver(t.TempDir(), 0, nil)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	ctx := context.Background()

	require.NoError(t, d.Migrate(ctx, root))

	res, err := d.Execute(ctx, "inventory", "", "SELECT label FROM items ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"bolt"}, {"nut"}}, res.Rows)
}

func TestSQLiteDriver_MigrateMissingRoot(t *testing.T) {
	d, err := NewSQLiteDriver(t.TempDir(), 0, nil)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	err = d.Migrate(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorContains(t, err, "read migrations dir")
}
