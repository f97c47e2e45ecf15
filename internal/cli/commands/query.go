package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/pkshell/internal/cli/output"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/querypane"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format   string
	Input    string
	Database string
	Schema   string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL on the backend",
		Long: `Send SQL to the backend's execution endpoint and print the result.

The query text comes from the arguments, from --input, or from stdin when it
is piped. When invoked without any of these on a terminal, enters interactive
REPL mode.`,
		Example: `  # Execute SQL directly
  pkshell query "SELECT * FROM users"

  # Run against a specific database and schema
  pkshell query -d shop -s public "SELECT count(*) FROM orders"

  # Read from a file, output as JSON
  pkshell query --input report.sql --format json

  # Interactive mode
  pkshell query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	// Flags
	addFormatFlag(cmd, &opts.Format)
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "Database to run against")
	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "Schema to run against")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if opts.Schema != "" && opts.Database == "" {
		return errors.New("--schema requires --database")
	}

	// Determine SQL source
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !output.IsTerminal(cmd.InOrStdin()):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, cc, opts)
	}

	cc.Store.SelectDatabase(opts.Database)
	cc.Store.SelectSchema(opts.Schema)

	pane := cc.QueryPane()
	return executeAndRender(cmd.Context(), cmd.OutOrStdout(), cc, pane, sqlQuery, formatFor(cmd, cc, opts.Format))
}

// queryError reports a failed query with its user-facing message.
type queryError struct {
	message string
	err     error
}

func (e *queryError) Error() string { return e.message }

func (e *queryError) Unwrap() error { return e.err }

func executeAndRender(ctx context.Context, w io.Writer, cc *CommandContext, pane *querypane.Pane, sqlQuery, format string) error {
	sqlQuery = strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";")
	if err := pane.Run(ctx, sqlQuery); err != nil {
		if errors.Is(err, querypane.ErrEmpty) {
			return errors.New(cc.Translator.T(locale.QueryEmpty))
		}
		if errors.Is(err, querypane.ErrBusy) {
			return errors.New(cc.Translator.T(locale.QueryBusy))
		}
		return &queryError{message: pane.State().LastError, err: err}
	}

	res := pane.State().LastResult
	return renderResult(w, res, format, cc.Translator.T(locale.QueryRowCount, len(res.Rows)))
}
