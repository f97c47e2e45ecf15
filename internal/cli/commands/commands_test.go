package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/leapstack-labs/pkshell/internal/api"
	"github.com/leapstack-labs/pkshell/internal/cli/config"
	"github.com/leapstack-labs/pkshell/internal/fetch"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/selection"
	"github.com/leapstack-labs/pkshell/internal/testutil"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewDatabasesCommand(), "databases", []string{"format"}},
		{NewSchemasCommand(), "schemas <database>", []string{"format"}},
		{NewTablesCommand(), "tables <database> <schema>", []string{"format", "table"}},
		{NewTreeCommand(), "tree [database [schema [table]]]", nil},
		{NewShellCommand(), "shell", nil},
		{NewServeCommand(), "serve", []string{"addr", "driver", "data-dir", "dsn", "migrations", "demo", "watch", "max-conns", "max-rows", "allowed-origins"}},
		{NewUICommand(), "ui", []string{"listen", "open", "session-idle"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestDatabasesCommand(t *testing.T) {
	setupBackend(t)

	out, _, err := execute(t, NewDatabasesCommand(), "-f", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "shop", rows[0]["name"])
	assert.EqualValues(t, 1, rows[0]["schemas"])
}

func TestSchemasCommand(t *testing.T) {
	setupBackend(t)

	out, _, err := execute(t, NewSchemasCommand(), "shop", "-f", "md")
	require.NoError(t, err)
	assert.Contains(t, out, "| main |")

	_, _, err = execute(t, NewSchemasCommand(), "nope")
	require.Error(t, err)
	assert.Equal(t, "Could not load schemas", err.Error())

	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestLoaded_HidesTransportError(t *testing.T) {
	logger, logs := testutil.NewCapturingLogger()
	cc := &CommandContext{Logger: logger, Translator: locale.Default()}
	cause := &api.HTTPError{Op: "GET", URL: "http://127.0.0.1:8000/api/databases/x/schemas", StatusCode: http.StatusBadGateway}

	_, err := loaded(cc, fetch.State[string, []catalog.Schema]{
		Status:  fetch.Failed,
		Key:     "x",
		Message: "Could not load schemas",
		Err:     cause,
	})
	require.Error(t, err)
	assert.Equal(t, "Could not load schemas", err.Error())
	assert.NotContains(t, err.Error(), "127.0.0.1")
	assert.NotContains(t, err.Error(), "502")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, logs.String(), "catalog load failed")
	assert.Contains(t, logs.String(), "502")

	_, err = loaded(cc, fetch.State[string, []catalog.Schema]{})
	require.Error(t, err)
	assert.Equal(t, "Nothing has been loaded yet", err.Error())
}

func TestTablesCommand(t *testing.T) {
	setupBackend(t)

	t.Run("list", func(t *testing.T) {
		out, _, err := execute(t, NewTablesCommand(), "shop", "main", "-f", "csv")
		require.NoError(t, err)
		assert.Contains(t, out, "events")
		assert.Contains(t, out, "users")
	})

	t.Run("detail", func(t *testing.T) {
		out, _, err := execute(t, NewTablesCommand(), "shop", "main", "--table", "users", "-f", "json")
		require.NoError(t, err)

		var doc struct {
			Name    string           `json:"name"`
			Columns []map[string]any `json:"columns"`
			Indexes []map[string]any `json:"indexes"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		assert.Equal(t, "users", doc.Name)
		require.Len(t, doc.Columns, 3)
		assert.Equal(t, "email", doc.Columns[2]["name"])
		assert.EqualValues(t, 80, doc.Columns[2]["len"])
		require.NotEmpty(t, doc.Indexes)
		assert.Equal(t, "users_email_idx", doc.Indexes[0]["name"])
	})

	t.Run("detail markdown", func(t *testing.T) {
		out, _, err := execute(t, NewTablesCommand(), "shop", "main", "--table", "users", "-f", "md")
		require.NoError(t, err)
		assert.Contains(t, out, "Columns")
		assert.Contains(t, out, "Indexes")
		assert.Contains(t, out, "| email |")
	})

	t.Run("unknown table", func(t *testing.T) {
		_, _, err := execute(t, NewTablesCommand(), "shop", "main", "--table", "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `Table "nope" not found`)
	})

	t.Run("unknown schema", func(t *testing.T) {
		_, _, err := execute(t, NewTablesCommand(), "shop", "sales")
		require.Error(t, err)
	})
}

func TestTreeCommand(t *testing.T) {
	setupBackend(t)

	out, _, err := execute(t, NewTreeCommand(), "shop", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "▾ main")
	assert.Contains(t, out, "users")
}

// newTestREPL builds a REPL session writing to buffers.
func newTestREPL(t *testing.T) (*repl, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	setupBackend(t)

	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cc, err := NewCommandContext(cmd)
	require.NoError(t, err)

	r := &repl{
		ctx:    cmd.Context(),
		out:    out,
		errOut: errOut,
		cc:     cc,
		nav:    cc.Navigator(),
		pane:   cc.QueryPane(),
		ui:     cc.Renderer(cmd, "json"),
		format: "json",
	}
	require.NoError(t, r.nav.Run(r.ctx, r.nav.Start()))
	return r, out, errOut
}

func TestREPL_DotCommands(t *testing.T) {
	r, out, errOut := newTestREPL(t)

	assert.False(t, r.handleDotCommand(".schemas"))
	assert.Contains(t, errOut.String(), "No database selected")

	assert.False(t, r.handleDotCommand(".use shop main"))
	sel := r.cc.Store.Current()
	assert.Equal(t, "shop", sel.Database)
	assert.Equal(t, "main", sel.Schema)
	assert.Equal(t, "pkshell[shop/main]> ", promptFor(sel))

	out.Reset()
	r.handleDotCommand(".tables")
	assert.Contains(t, out.String(), `"name": "users"`)

	out.Reset()
	r.handleDotCommand(".format csv")
	assert.Equal(t, "csv", r.format)
	r.handleDotCommand(".databases")
	assert.Contains(t, out.String(), "shop")

	errOut.Reset()
	r.handleDotCommand(".format xml")
	assert.Contains(t, errOut.String(), "Usage: .format")
	assert.Equal(t, "csv", r.format)

	errOut.Reset()
	r.handleDotCommand(".bogus")
	assert.Contains(t, errOut.String(), "Unknown command: .bogus")

	out.Reset()
	r.handleDotCommand(".tree")
	assert.Contains(t, out.String(), "▾ main")

	assert.True(t, r.handleDotCommand(".quit"))
	assert.True(t, r.handleDotCommand(".EXIT"))
}

func TestREPL_UseUnknownDatabase(t *testing.T) {
	r, _, errOut := newTestREPL(t)

	r.handleDotCommand(".use nope")
	assert.Equal(t, "nope", r.cc.Store.Current().Database)
	assert.Contains(t, errOut.String(), "Could not load schemas")
}

func TestREPL_QueryUsesSelection(t *testing.T) {
	r, out, errOut := newTestREPL(t)

	r.handleDotCommand(".use shop main")
	assert.True(t, r.reportErr(executeAndRender(r.ctx, r.out, r.cc, r.pane, "SELECT name FROM users WHERE id = 2;", r.format)))
	assert.Contains(t, out.String(), `"name": "grace"`)
	assert.Empty(t, errOut.String())

	assert.False(t, r.reportErr(executeAndRender(r.ctx, r.out, r.cc, r.pane, "SELEC 1;", r.format)))
	assert.Contains(t, errOut.String(), "Error: Query failed")
}

func TestREPL_SpanishMessages(t *testing.T) {
	t.Setenv("PKSHELL_LOCALE", "es")
	r, out, errOut := newTestREPL(t)

	r.handleDotCommand(".help")
	r.handleDotCommand(".schemas")
	r.handleDotCommand(".use nope")
	r.handleDotCommand(".describe")
	r.handleDotCommand(".use shop main")
	r.handleDotCommand(".describe ghost")
	r.handleDotCommand(".format xml")
	r.handleDotCommand(".bogus")

	got := errOut.String()
	assert.Contains(t, got, "No hay base de datos seleccionada")
	assert.Contains(t, got, "Error al obtener los schemas")
	assert.Contains(t, got, "Uso: .describe <tabla>")
	assert.Contains(t, got, `No se encontró la tabla "ghost"`)
	assert.Contains(t, got, "Comando desconocido: .bogus")
	for _, english := range []string{"No database", "Could not", "Usage", "not found", "Unknown command", "http://"} {
		assert.NotContains(t, got, english)
	}

	assert.Contains(t, out.String(), "Comandos:")
	assert.NotContains(t, out.String(), "Show this help message")
}

func TestPromptFor(t *testing.T) {
	tests := []struct {
		sel  selection.Selection
		want string
	}{
		{selection.Selection{}, "pkshell> "},
		{selection.Selection{Database: "shop"}, "pkshell[shop]> "},
		{selection.Selection{Database: "shop", Schema: "main"}, "pkshell[shop/main]> "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, promptFor(tt.sel))
	}
}

func TestOpenDriver(t *testing.T) {
	t.Run("sqlite creates the data dir", func(t *testing.T) {
		dir := t.TempDir() + "/data"
		d, err := openDriver(&config.ServeConfig{Driver: config.DriverSQLite, DataDir: dir}, nil)
		require.NoError(t, err)
		defer func() { _ = d.Close() }()
		assert.Equal(t, "sqlite", d.Name())
		assert.DirExists(t, dir)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := openDriver(&config.ServeConfig{Driver: "oracle"}, nil)
		require.Error(t, err)
	})

	t.Run("postgres options", func(t *testing.T) {
		assert.Equal(t, "localhost", postgresOptions(&config.PostgresConfig{Host: "localhost"}).Host)
		assert.Empty(t, postgresOptions(nil).Host)
	})
}
