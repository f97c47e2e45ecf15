package commands

import (
	"errors"

	"github.com/leapstack-labs/pkshell/internal/cli/output"
	"github.com/leapstack-labs/pkshell/internal/tui"
	"github.com/spf13/cobra"
)

// NewShellCommand creates the interactive shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open the interactive shell",
		Long: `Open the full-screen shell: a sidebar with the database, schema and
table selector next to a query editor and a results pane.

This is also what runs when pkshell is invoked without a subcommand.`,
		Args: cobra.NoArgs,
		RunE: RunShell,
	}
}

// RunShell runs the interactive shell on the command's terminal.
func RunShell(cmd *cobra.Command, _ []string) error {
	if !output.IsTerminal(cmd.InOrStdin()) || !output.IsTerminal(cmd.OutOrStdout()) {
		return errors.New("the shell needs a terminal; use 'pkshell query' for piped input")
	}

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m := tui.New(tui.Options{
		Navigator: cc.Navigator(),
		Pane:      cc.QueryPane(),
		Styles:    cc.Renderer(cmd, "").Styles(),
		Logger:    cc.Logger,
		Context:   ctx,
	})
	return tui.Run(ctx, m)
}
