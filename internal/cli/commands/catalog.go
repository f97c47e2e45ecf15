package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pkshell/internal/fetch"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// CatalogOptions holds options for the catalog listing commands.
type CatalogOptions struct {
	Format string
	Table  string
}

// NewDatabasesCommand creates the databases command.
func NewDatabasesCommand() *cobra.Command {
	opts := &CatalogOptions{}
	cmd := &cobra.Command{
		Use:     "databases",
		Aliases: []string{"dbs"},
		Short:   "List databases on the backend",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			nav := cc.Navigator()
			if err := nav.Run(cmd.Context(), nav.Start()); err != nil {
				return err
			}
			dbs, err := loaded(cc, nav.Databases())
			if err != nil {
				return err
			}
			return renderDatabases(cmd, cc, dbs, opts.Format)
		},
	}
	addFormatFlag(cmd, &opts.Format)
	return cmd
}

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand() *cobra.Command {
	opts := &CatalogOptions{}
	cmd := &cobra.Command{
		Use:   "schemas <database>",
		Short: "List the schemas of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			nav := cc.Navigator()
			if err := nav.Run(cmd.Context(), nav.SelectDatabase(args[0])); err != nil {
				return err
			}
			schemas, err := loaded(cc, nav.Schemas())
			if err != nil {
				return err
			}
			return renderSchemas(cmd, cc, schemas, opts.Format)
		},
	}
	addFormatFlag(cmd, &opts.Format)
	return cmd
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	opts := &CatalogOptions{}
	cmd := &cobra.Command{
		Use:   "tables <database> <schema>",
		Short: "List the tables of a schema",
		Long: `List the tables of a schema.

With --table, show the columns and indexes of one table instead.`,
		Example: `  pkshell tables shop public
  pkshell tables shop public --table orders
  pkshell tables shop public --format yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			nav := cc.Navigator()
			if err := nav.Run(cmd.Context(), nav.SelectDatabase(args[0])); err != nil {
				return err
			}
			job, err := nav.SelectSchema(args[1])
			if err != nil {
				return err
			}
			if err := nav.Run(cmd.Context(), job); err != nil {
				return err
			}
			tables, err := loaded(cc, nav.Tables())
			if err != nil {
				return err
			}
			if opts.Table != "" {
				return renderTableDetail(cmd, cc, tables, opts.Table, opts.Format)
			}
			return renderTables(cmd, cc, tables, opts.Format)
		},
	}
	addFormatFlag(cmd, &opts.Format)
	cmd.Flags().StringVar(&opts.Table, "table", "", "Describe one table")
	return cmd
}

// NewTreeCommand creates the tree command.
func NewTreeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [database [schema [table]]]",
		Short: "Print the catalog as a tree",
		Long: `Print the database > schema > table drill-down as a text tree,
the same view the shell sidebar shows.`,
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			nav := cc.Navigator()
			ctx := cmd.Context()

			jobs := []navigator.Job{nav.Start()}
			if len(args) > 0 {
				jobs = append(jobs, nav.SelectDatabase(args[0]))
			}
			if err := nav.Run(ctx, jobs...); err != nil {
				return err
			}
			if len(args) > 1 {
				job, err := nav.SelectSchema(args[1])
				if err != nil {
					return err
				}
				if err := nav.Run(ctx, job); err != nil {
					return err
				}
			}
			if len(args) > 2 {
				nav.FocusTable(args[2])
			}
			return navigator.Render(cmd.OutOrStdout(), nav.View())
		},
	}
}

func addFormatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "f", "", "Output format: table, json, csv, md, yaml (default from --output)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// loadError carries the user-facing message of a failed fetch. The
// transport error stays reachable through Unwrap but is never printed.
type loadError struct {
	message string
	err     error
}

func (e *loadError) Error() string { return e.message }

func (e *loadError) Unwrap() error { return e.err }

// loaded returns the data of a finished resource or its failure.
func loaded[K comparable, T any](cc *CommandContext, st fetch.State[K, T]) (T, error) {
	var zero T
	switch st.Status {
	case fetch.Success:
		return st.Data, nil
	case fetch.Failed:
		cc.Logger.Debug("catalog load failed", "key", st.Key, "error", st.Err)
		return zero, &loadError{message: st.Message, err: st.Err}
	default:
		return zero, errors.New(cc.Translator.T(locale.NotLoaded))
	}
}

func formatFor(cmd *cobra.Command, cc *CommandContext, flag string) string {
	return string(cc.Renderer(cmd, flag).EffectiveMode())
}

func renderDatabases(cmd *cobra.Command, cc *CommandContext, dbs []catalog.Database, format string) error {
	data := tabular{columns: []string{"id", "name", "schemas", "created_at"}}
	for _, db := range dbs {
		var created any
		if !db.CreatedAt.IsZero() {
			created = db.CreatedAt
		}
		data.rows = append(data.rows, []any{db.ID, db.Name, len(db.Schemas()), created})
	}
	footer := emptyOr(cc.Translator, len(dbs), locale.DatabasesEmpty)
	return renderTabular(cmd.OutOrStdout(), data, formatFor(cmd, cc, format), footer)
}

func renderSchemas(cmd *cobra.Command, cc *CommandContext, schemas []catalog.Schema, format string) error {
	data := tabular{columns: []string{"id", "name", "tables", "functions"}}
	for _, s := range schemas {
		data.rows = append(data.rows, []any{s.ID, s.Name, len(s.Tables()), len(s.Functions())})
	}
	footer := emptyOr(cc.Translator, len(schemas), locale.SchemasEmpty)
	return renderTabular(cmd.OutOrStdout(), data, formatFor(cmd, cc, format), footer)
}

func renderTables(cmd *cobra.Command, cc *CommandContext, tables []catalog.Table, format string) error {
	data := tabular{columns: []string{"id", "name", "tuples", "pages", "columns", "indexes"}}
	for _, t := range tables {
		data.rows = append(data.rows, []any{t.ID, t.Name, t.Tuples, t.Pages, len(t.Columns()), len(t.Indexes())})
	}
	footer := emptyOr(cc.Translator, len(tables), locale.TablesEmpty)
	return renderTabular(cmd.OutOrStdout(), data, formatFor(cmd, cc, format), footer)
}

func renderTableDetail(cmd *cobra.Command, cc *CommandContext, tables []catalog.Table, name, format string) error {
	for _, t := range tables {
		if t.Name != name {
			continue
		}
		r := cc.Renderer(cmd, format)
		w := r.Writer()
		format = string(r.EffectiveMode())
		tr := cc.Translator

		cols := tabular{columns: []string{"name", "type", "len", "not_null", "has_default"}}
		for _, c := range t.Columns() {
			cols.rows = append(cols.rows, []any{c.Name, c.TypeID.String(), c.Len, c.NotNull, c.HasDefault})
		}
		idx := tabular{columns: []string{"name", "kind", "columns", "primary"}}
		for _, i := range t.Indexes() {
			idx.rows = append(idx.rows, []any{i.Name, i.Kind.String(), joinInts(i.Columns()), i.IsPrimary})
		}

		switch format {
		case "json", "yaml":
			doc := map[string]any{
				"name":    t.Name,
				"tuples":  t.Tuples,
				"columns": cols.records(),
				"indexes": idx.records(),
			}
			if format == "json" {
				return renderJSON(w, doc)
			}
			return yaml.NewEncoder(w).Encode(doc)
		case "table", "md":
			r.Header(t.Name)
			r.Println()
			r.Header(tr.T(locale.ColumnsHeading))
		}
		if err := renderTabular(w, cols, format, ""); err != nil {
			return err
		}
		if format == "table" || format == "md" {
			r.Println()
			r.Header(tr.T(locale.IndexesHeading))
		}
		return renderTabular(w, idx, format, "")
	}
	return errors.New(cc.Translator.T(locale.TableNotFound, name))
}

// emptyOr returns the row count footer, or the empty message when n is 0.
func emptyOr(tr *locale.Translator, n int, empty locale.Key) string {
	if n == 0 {
		return tr.T(empty)
	}
	return tr.T(locale.QueryRowCount, n)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}
