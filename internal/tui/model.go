// Package tui is the interactive shell: a catalog sidebar next to a query
// editor and its results.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/pkshell/internal/cli/output"
	"github.com/leapstack-labs/pkshell/internal/fetch"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/querypane"
)

type focus int

const (
	focusSidebar focus = iota
	focusEditor
	focusResults
)

const sidebarWidth = 32

// jobDoneMsg carries a finished catalog load back to Update.
type jobDoneMsg struct {
	out navigator.Outcome
}

// queryDoneMsg carries a finished query back to Update.
type queryDoneMsg struct {
	resp *querypane.Response
}

// Options configures the shell model.
type Options struct {
	Navigator *navigator.Navigator
	Pane      *querypane.Pane
	Styles    *output.Styles
	Logger    *slog.Logger
	// Context bounds every load and query the shell starts.
	Context context.Context
}

// Model is the bubbletea model of the shell.
type Model struct {
	ctx    context.Context
	nav    *navigator.Navigator
	pane   *querypane.Pane
	tr     *locale.Translator
	styles *output.Styles
	logger *slog.Logger

	keys    keyMap
	help    help.Model
	editor  textarea.Model
	spinner spinner.Model
	results viewport.Model

	focus  focus
	rows   []row
	cursor int
	// notice is a transient message such as "a query is already running".
	notice string
	// showing is the table whose detail fills the results pane, if any.
	showing string

	width  int
	height int
}

// New creates the shell model.
func New(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	styles := opts.Styles
	if styles == nil {
		styles = output.NewStyles(lipgloss.DefaultRenderer())
	}
	tr := opts.Navigator.Translator()

	editor := textarea.New()
	editor.Placeholder = "SELECT ..."
	editor.ShowLineNumbers = false
	editor.SetValue(opts.Pane.State().Text)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := &Model{
		ctx:     ctx,
		nav:     opts.Navigator,
		pane:    opts.Pane,
		tr:      tr,
		styles:  styles,
		logger:  logger,
		keys:    defaultKeyMap(),
		help:    help.New(),
		editor:  editor,
		spinner: sp,
		results: viewport.New(80, 10),
	}
	m.refresh()
	return m
}

// Init starts the database load.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.reload())
}

func (m *Model) reload() tea.Cmd {
	cmd := m.runJob(m.nav.Start())
	m.refresh()
	return cmd
}

func (m *Model) runJob(job navigator.Job) tea.Cmd {
	if job == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return jobDoneMsg{out: job.Run(ctx)}
	}
}

func (m *Model) runQuery(req *querypane.Request) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return queryDoneMsg{resp: req.Run(ctx)}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case jobDoneMsg:
		if err := m.nav.Apply(msg.out); err != nil && !errors.Is(err, fetch.ErrStale) {
			m.logger.Warn("apply failed", "error", err)
		}
		m.refresh()
		return m, nil

	case queryDoneMsg:
		m.pane.Finish(msg.resp)
		m.notice = ""
		if msg.resp.Err() == nil {
			m.showing = ""
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, m.updateFocused(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.Switch):
		return m, m.cycleFocus(msg.String() == "shift+tab")
	case key.Matches(msg, m.keys.Run):
		return m, m.submit()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.reload()
	}

	if m.focus == focusSidebar {
		return m, m.handleSidebarKey(msg)
	}
	return m, m.updateFocused(msg)
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = moveCursor(m.rows, m.cursor, -1)
	case key.Matches(msg, m.keys.Down):
		m.cursor = moveCursor(m.rows, m.cursor, 1)
	case key.Matches(msg, m.keys.Reset):
		m.nav.Reset()
		m.showing = ""
		m.refresh()
	case key.Matches(msg, m.keys.Select):
		return m.activate()
	}
	return nil
}

// activate acts on the row under the cursor.
func (m *Model) activate() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	r := m.rows[m.cursor]
	var cmd tea.Cmd
	switch r.kind {
	case rowDatabase:
		m.showing = ""
		cmd = m.runJob(m.nav.SelectDatabase(r.name))
	case rowSchema:
		job, err := m.nav.ToggleSchema(r.name)
		if err != nil {
			m.notice = err.Error()
			break
		}
		m.showing = ""
		cmd = m.runJob(job)
	case rowTable:
		m.nav.FocusTable(r.name)
		m.showing = r.name
	}
	m.refresh()
	return cmd
}

func (m *Model) submit() tea.Cmd {
	req, err := m.pane.Submit(m.editor.Value())
	switch {
	case errors.Is(err, querypane.ErrBusy):
		m.notice = m.tr.T(locale.QueryBusy)
		return nil
	case errors.Is(err, querypane.ErrEmpty):
		m.notice = m.tr.T(locale.QueryEmpty)
		return nil
	case err != nil:
		m.notice = err.Error()
		return nil
	}
	m.notice = ""
	return tea.Batch(m.spinner.Tick, m.runQuery(req))
}

func (m *Model) cycleFocus(back bool) tea.Cmd {
	step := 1
	if back {
		step = 2
	}
	m.focus = (m.focus + focus(step)) % 3
	if m.focus == focusEditor {
		return m.editor.Focus()
	}
	m.editor.Blur()
	return nil
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case focusEditor:
		m.editor, cmd = m.editor.Update(msg)
		m.pane.SetText(m.editor.Value())
	case focusResults:
		m.results, cmd = m.results.Update(msg)
	}
	return cmd
}

// refresh rebuilds everything derived from the navigator and the pane.
func (m *Model) refresh() {
	view := m.nav.View()
	m.rows = sidebarRows(view)
	m.cursor = clampCursor(m.rows, m.cursor)

	if m.showing != "" && view.Detail != nil && view.Detail.Name == m.showing {
		m.results.SetContent(renderDetail(m.styles, view.Detail))
		return
	}
	m.results.SetContent(renderResult(m.styles, m.tr, m.pane.State()))
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	mainWidth := max(m.width-sidebarWidth-4, 20)
	helpHeight := lipgloss.Height(m.helpView())
	editorHeight := 6
	// Borders, headings and the status line.
	chrome := 2*2 + 3 + helpHeight
	m.editor.SetWidth(mainWidth)
	m.editor.SetHeight(editorHeight)
	m.results.Width = mainWidth
	m.results.Height = max(m.height-editorHeight-chrome, 3)
	m.help.Width = m.width
}

// View implements tea.Model.
func (m *Model) View() string {
	s := m.styles

	sidebarStyle, mainStyle := s.Border, s.Border
	if m.focus == focusSidebar {
		sidebarStyle = s.Focused
	}
	height := max(m.height-lipgloss.Height(m.helpView())-2, 1)
	sidebar := sidebarStyle.Width(sidebarWidth).Height(height).Render(m.renderSidebar())

	editorStyle, resultsStyle := mainStyle, mainStyle
	switch m.focus {
	case focusEditor:
		editorStyle = s.Focused
	case focusResults:
		resultsStyle = s.Focused
	}

	editor := lipgloss.JoinVertical(lipgloss.Left,
		s.Header.Render(m.tr.T(locale.QueryHeading)),
		m.editor.View(),
	)
	results := lipgloss.JoinVertical(lipgloss.Left,
		s.Header.Render(m.tr.T(locale.QueryResults)),
		m.results.View(),
	)
	main := lipgloss.JoinVertical(lipgloss.Left,
		editorStyle.Render(editor),
		m.statusLine(),
		resultsStyle.Render(results),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main),
		m.helpView(),
	)
}

// statusLine shows the running query, the last error or a notice.
func (m *Model) statusLine() string {
	st := m.pane.State()
	switch {
	case st.Loading:
		return m.spinner.View() + " " + m.tr.T(locale.QueryRunning)
	case m.notice != "":
		return m.styles.Warning.Render(m.notice)
	case st.LastError != "":
		return m.styles.Error.Render(st.LastError)
	case st.LastResult != nil:
		return m.styles.Muted.Render(m.tr.T(locale.QueryRowCount, len(st.LastResult.Rows)) +
			" · " + st.Elapsed.Round(time.Millisecond).String())
	default:
		return ""
	}
}

func (m *Model) helpView() string {
	if m.help.ShowAll {
		return m.help.View(m.keys)
	}
	return m.styles.Muted.Render(m.tr.T(locale.HelpKeys))
}

// Run starts the shell on the terminal and blocks until it quits.
func Run(ctx context.Context, m *Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
