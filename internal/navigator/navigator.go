// Package navigator drives the database > schema > table drill-down.
//
// A Navigator owns the selection store and the three catalog resources.
// Selection methods update the store and start the dependent fetch in one
// step, returning a Job for the caller to run. The caller decides where the
// network call happens (inline for the CLI, a bubbletea command for the TUI)
// and hands the outcome back through Apply.
package navigator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/pkshell/internal/fetch"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/selection"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
)

// ErrNoDatabase is returned when a schema is selected before a database.
var ErrNoDatabase = errors.New("no database selected")

// Catalog is the backend surface the navigator reads from.
type Catalog interface {
	Databases(ctx context.Context) ([]catalog.Database, error)
	Schemas(ctx context.Context, database string) ([]catalog.Schema, error)
	Tables(ctx context.Context, database, schema string) ([]catalog.Table, error)
}

// TableKey identifies the tables of one schema.
type TableKey struct {
	Database string
	Schema   string
}

// Job is a pending load started by a selection change.
type Job interface {
	// Resource names the resource being loaded.
	Resource() string
	Run(ctx context.Context) Outcome
}

// Outcome is a finished load waiting for Apply.
type Outcome interface {
	Commit() error
	Err() error
}

type job[K comparable, T any] struct {
	j *fetch.Job[K, T]
}

func (j job[K, T]) Resource() string { return j.j.Resource().Name() }

func (j job[K, T]) Run(ctx context.Context) Outcome { return j.j.Run(ctx) }

// Options configures a Navigator.
type Options struct {
	Store      *selection.Store
	Catalog    Catalog
	Translator *locale.Translator
	Logger     *slog.Logger
}

// Navigator coordinates the selection store with the catalog resources.
type Navigator struct {
	store  *selection.Store
	tr     *locale.Translator
	logger *slog.Logger

	mu        sync.Mutex
	table     string
	databases *fetch.Resource[struct{}, []catalog.Database]
	schemas   *fetch.Resource[string, []catalog.Schema]
	tables    *fetch.Resource[TableKey, []catalog.Table]
}

// New creates a Navigator. A nil Store gets a fresh one.
func New(opts Options) *Navigator {
	store := opts.Store
	if store == nil {
		store = selection.NewStore()
	}
	tr := opts.Translator
	if tr == nil {
		tr = locale.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cat := opts.Catalog

	n := &Navigator{store: store, tr: tr, logger: logger}

	n.databases = fetch.New(fetch.Options[struct{}, []catalog.Database]{
		Name: "databases",
		Load: func(ctx context.Context, _ struct{}) ([]catalog.Database, error) {
			return cat.Databases(ctx)
		},
		ErrorMessage: tr.T(locale.DatabasesError),
		Logger:       logger,
	})
	n.schemas = fetch.New(fetch.Options[string, []catalog.Schema]{
		Name: "schemas",
		Load: cat.Schemas,
		Accept: func(db string) bool {
			return store.Current().Database == db
		},
		ErrorMessage: tr.T(locale.SchemasError),
		Logger:       logger,
	})
	n.tables = fetch.New(fetch.Options[TableKey, []catalog.Table]{
		Name: "tables",
		Load: func(ctx context.Context, k TableKey) ([]catalog.Table, error) {
			return cat.Tables(ctx, k.Database, k.Schema)
		},
		Accept: func(k TableKey) bool {
			cur := store.Current()
			return cur.Database == k.Database && cur.Schema == k.Schema
		},
		OnSuccess: func(_ TableKey, tables []catalog.Table) {
			store.SetTables(catalog.TableNames(tables))
		},
		ErrorMessage: tr.T(locale.TablesError),
		Logger:       logger,
	})
	return n
}

// Store returns the selection store.
func (n *Navigator) Store() *selection.Store {
	return n.store
}

// Translator returns the translator used for view messages.
func (n *Navigator) Translator() *locale.Translator {
	return n.tr
}

// Start begins loading the database list.
func (n *Navigator) Start() Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	return job[struct{}, []catalog.Database]{n.databases.Begin(struct{}{})}
}

// SelectDatabase selects name and starts loading its schemas. The schema
// selection and table list are cleared even when name is already selected.
// An empty name clears the selection and returns a nil Job.
func (n *Navigator) SelectDatabase(name string) Job {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.store.SelectDatabase(name)
	n.table = ""
	n.tables.Disable()
	if name == "" {
		n.schemas.Disable()
		return nil
	}
	n.logger.Debug("database selected", "database", name)
	return job[string, []catalog.Schema]{n.schemas.Begin(name)}
}

// SelectSchema selects and expands schema name in the selected database and
// starts loading its tables. An empty name collapses the schema and returns a
// nil Job.
func (n *Navigator) SelectSchema(name string) (Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.store.Current()
	if name != "" && !cur.HasDatabase() {
		return nil, ErrNoDatabase
	}

	n.store.SelectSchema(name)
	n.table = ""
	if name == "" {
		n.tables.Disable()
		return nil, nil
	}
	n.logger.Debug("schema selected", "database", cur.Database, "schema", name)
	return job[TableKey, []catalog.Table]{n.tables.Begin(TableKey{Database: cur.Database, Schema: name})}, nil
}

// ToggleSchema selects name, or collapses it when it is already expanded.
func (n *Navigator) ToggleSchema(name string) (Job, error) {
	if n.store.Current().Schema == name {
		return n.SelectSchema("")
	}
	return n.SelectSchema(name)
}

// FocusTable marks a table of the expanded schema for the detail view.
func (n *Navigator) FocusTable(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.table = name
}

// Reset clears the selection and every schema and table resource.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.store.Reset()
	n.table = ""
	n.schemas.Disable()
	n.tables.Disable()
}

// Apply commits a finished load. It returns fetch.ErrStale when the outcome
// no longer matches the selection; state is unchanged in that case.
func (n *Navigator) Apply(out Outcome) error {
	if out == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return out.Commit()
}

// Run runs each job and applies its outcome. Nil jobs are skipped and stale
// outcomes are dropped silently. Failures end up in the resource state, so
// Run only reports context cancellation.
func (n *Navigator) Run(ctx context.Context, jobs ...Job) error {
	for _, j := range jobs {
		if j == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.Apply(j.Run(ctx)); err != nil && !errors.Is(err, fetch.ErrStale) {
			return err
		}
	}
	return nil
}

// Databases returns the state of the database list.
func (n *Navigator) Databases() fetch.State[struct{}, []catalog.Database] {
	return n.databases.State()
}

// Schemas returns the state of the schema list for the selected database.
func (n *Navigator) Schemas() fetch.State[string, []catalog.Schema] {
	return n.schemas.State()
}

// Tables returns the state of the table list for the selected schema.
func (n *Navigator) Tables() fetch.State[TableKey, []catalog.Table] {
	return n.tables.State()
}

// View builds the sidebar view model from the current state.
func (n *Navigator) View() Sidebar {
	n.mu.Lock()
	defer n.mu.Unlock()

	return BuildView(Snapshot{
		Selection: n.store.Current(),
		Focused:   n.table,
		Databases: n.databases.State(),
		Schemas:   n.schemas.State(),
		Tables:    n.tables.State(),
	}, n.tr)
}
