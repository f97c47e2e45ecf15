package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/pkshell/internal/cli/output"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/querypane"
	"github.com/leapstack-labs/pkshell/internal/selection"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
	"github.com/spf13/cobra"
)

// repl is the state of one interactive session.
type repl struct {
	ctx    context.Context
	out    io.Writer
	errOut io.Writer
	cc     *CommandContext
	nav    *navigator.Navigator
	pane   *querypane.Pane
	ui     *output.Renderer
	format string
}

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, opts *QueryOptions) error {
	r := &repl{
		ctx:    cmd.Context(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		cc:     cc,
		nav:    cc.Navigator(),
		pane:   cc.QueryPane(),
		ui:     cc.Renderer(cmd, opts.Format),
	}
	r.format = string(r.ui.EffectiveMode())

	// Load the database list for completion; failures show up on .databases.
	_ = r.nav.Run(r.ctx, r.nav.Start())
	if opts.Database != "" {
		r.use([]string{opts.Database, opts.Schema})
	}

	// Configure readline
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(cc.Store.Current()),
		HistoryFile:     cc.Cfg.HistoryFile,
		AutoComplete:    r.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Print welcome message
	_, _ = fmt.Fprintf(r.out, "pkshell (backend: %s)\n", cc.Client.BaseURL())
	_, _ = fmt.Fprintln(r.out, cc.Translator.T(locale.ReplBanner))
	_, _ = fmt.Fprintln(r.out)

	// Keep the prompt in sync with the selection.
	changes := cc.Store.Subscribe()
	defer cc.Store.Unsubscribe(changes)

	// REPL loop
	var multiLineBuffer strings.Builder
	for {
		select {
		case sel := <-changes:
			rl.SetPrompt(promptFor(sel))
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(promptFor(cc.Store.Current()))
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle dot-commands
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := r.handleDotCommand(line); quit {
				break
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString("\n")
			rl.SetPrompt("    ...> ")
			continue
		}
		rl.SetPrompt(promptFor(cc.Store.Current()))

		query := multiLineBuffer.String()
		multiLineBuffer.Reset()

		r.reportErr(executeAndRender(r.ctx, r.out, cc, r.pane, query, r.format))
		_, _ = fmt.Fprintln(r.out)
	}

	return nil
}

func promptFor(sel selection.Selection) string {
	switch {
	case sel.HasSchema():
		return fmt.Sprintf("pkshell[%s/%s]> ", sel.Database, sel.Schema)
	case sel.HasDatabase():
		return fmt.Sprintf("pkshell[%s]> ", sel.Database)
	default:
		return "pkshell> "
	}
}

// handleDotCommand runs a dot-command and reports whether the REPL should
// exit.
func (r *repl) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		_, _ = fmt.Fprintln(r.out, r.cc.Translator.T(locale.ReplHelp))

	case ".databases":
		r.reportErr(r.nav.Run(r.ctx, r.nav.Start()))
		if dbs, err := loaded(r.cc, r.nav.Databases()); r.reportErr(err) {
			r.reportErr(renderDatabases(r.cmdLike(), r.cc, dbs, r.format))
		}

	case ".use":
		if len(args) == 0 {
			r.warn(locale.UsageUse)
			break
		}
		r.use(args)

	case ".schemas":
		if !r.cc.Store.Current().HasDatabase() {
			r.warn(locale.NoDatabaseSelected)
			break
		}
		if schemas, err := loaded(r.cc, r.nav.Schemas()); r.reportErr(err) {
			r.reportErr(renderSchemas(r.cmdLike(), r.cc, schemas, r.format))
		}

	case ".tables":
		if !r.cc.Store.Current().HasSchema() {
			r.warn(locale.NoSchemaSelected)
			break
		}
		if tables, err := loaded(r.cc, r.nav.Tables()); r.reportErr(err) {
			r.reportErr(renderTables(r.cmdLike(), r.cc, tables, r.format))
		}

	case ".describe":
		if len(args) != 1 {
			r.warn(locale.UsageDescribe)
			break
		}
		if !r.cc.Store.Current().HasSchema() {
			r.warn(locale.NoSchemaSelected)
			break
		}
		if tables, err := loaded(r.cc, r.nav.Tables()); r.reportErr(err) {
			r.reportErr(renderTableDetail(r.cmdLike(), r.cc, tables, args[0], r.format))
		}

	case ".tree":
		r.reportErr(navigator.Render(r.out, r.nav.View()))

	case ".format":
		if len(args) != 1 || !slices.Contains(output.Modes, output.Mode(args[0])) {
			r.warn(locale.UsageFormat)
			break
		}
		r.format = args[0]

	case ".clear":
		_, _ = fmt.Fprint(r.out, "\033[H\033[2J")

	default:
		r.warn(locale.UnknownCommand, command)
	}
	return false
}

// use selects a database and, optionally, a schema, loading both levels.
func (r *repl) use(args []string) {
	if err := r.nav.Run(r.ctx, r.nav.SelectDatabase(args[0])); !r.reportErr(err) {
		return
	}
	if st := r.nav.Schemas(); st.Message != "" {
		_, _ = fmt.Fprintln(r.errOut, st.Message)
		return
	}
	if len(args) < 2 || args[1] == "" {
		return
	}
	job, err := r.nav.SelectSchema(args[1])
	if !r.reportErr(err) {
		return
	}
	if err := r.nav.Run(r.ctx, job); !r.reportErr(err) {
		return
	}
	if st := r.nav.Tables(); st.Message != "" {
		_, _ = fmt.Fprintln(r.errOut, st.Message)
	}
}

// warn prints a localized message to the error writer.
func (r *repl) warn(key locale.Key, args ...any) {
	_, _ = fmt.Fprintln(r.errOut, r.cc.Translator.T(key, args...))
}

// reportErr prints err and reports whether there was none.
func (r *repl) reportErr(err error) bool {
	if err == nil {
		return true
	}
	r.ui.Error(r.cc.Translator.T(locale.ErrorWith, err))
	return false
}

// cmdLike returns a command whose output goes to the REPL writers, for the
// shared catalog renderers.
func (r *repl) cmdLike() *cobra.Command {
	c := &cobra.Command{}
	c.SetOut(r.out)
	c.SetErr(r.errOut)
	return c
}

// completer builds a readline completer whose names follow the selection.
func (r *repl) completer() *readline.PrefixCompleter {
	store := r.cc.Store
	tables := func(string) []string {
		return store.Current().Tables
	}
	databases := func(string) []string {
		if st := r.nav.Databases(); st.Data != nil {
			return catalog.DatabaseNames(st.Data)
		}
		return nil
	}
	schemas := func(string) []string {
		if st := r.nav.Schemas(); st.Data != nil {
			return catalog.SchemaNames(st.Data)
		}
		return nil
	}

	// Add dot-commands
	return readline.NewPrefixCompleter(
		readline.PcItem("SELECT",
			readline.PcItem("*", readline.PcItem("FROM", readline.PcItemDynamic(tables))),
		),
		readline.PcItem("FROM", readline.PcItemDynamic(tables)),
		readline.PcItem(".help"),
		readline.PcItem(".databases"),
		readline.PcItem(".use", readline.PcItemDynamic(databases, readline.PcItemDynamic(schemas))),
		readline.PcItem(".schemas"),
		readline.PcItem(".tables"),
		readline.PcItem(".describe", readline.PcItemDynamic(tables)),
		readline.PcItem(".tree"),
		readline.PcItem(".format",
			readline.PcItem("table"), readline.PcItem("json"), readline.PcItem("csv"),
			readline.PcItem("md"), readline.PcItem("yaml"),
		),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
