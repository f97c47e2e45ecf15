// Package output renders command output for terminals and pipes.
//
// A Renderer resolves the "auto" mode against the writer it targets and
// carries lipgloss styles whose color profile follows termenv detection, so
// styled text degrades to plain text when piped.
package output

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode is an output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeTable    Mode = "table"
	ModeMarkdown Mode = "md"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeYAML     Mode = "yaml"
)

// Modes lists the concrete modes accepted by --format.
var Modes = []Mode{ModeTable, ModeJSON, ModeCSV, ModeMarkdown, ModeYAML}

// Valid reports whether m is auto or a concrete mode.
func (m Mode) Valid() bool {
	return m == ModeAuto || m == "" || slices.Contains(Modes, m)
}

// Styles holds the text styles shared by the CLI and the TUI.
type Styles struct {
	Header   lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Selected lipgloss.Style
	Border   lipgloss.Style
	Focused  lipgloss.Style
}

// NewStyles builds the style set on r.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:     r.NewStyle().Bold(true),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:  r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("9")),
		Selected: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Border:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")),
		Focused:  r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")),
	}
}

// Renderer writes styled output.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	tty    bool
	styles *Styles
}

// NewRenderer creates a Renderer for out. Diagnostics go to errOut.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	tty := IsTerminal(out)

	lr := lipgloss.NewRenderer(out)
	profile := termenv.Ascii
	if tty && !termenv.EnvNoColor() {
		profile = termenv.EnvColorProfile()
	}
	lr.SetColorProfile(profile)

	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		tty:    tty,
		styles: NewStyles(lr),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves auto: a table on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != "" && r.mode != ModeAuto {
		return r.mode
	}
	if r.tty {
		return ModeTable
	}
	return ModeMarkdown
}

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the diagnostics writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Styles returns the renderer's styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section heading.
func (r *Renderer) Header(s string) {
	r.Println(r.styles.Header.Render(s))
}

// Muted returns s in the muted style.
func (r *Renderer) Muted(s string) string {
	return r.styles.Muted.Render(s)
}

// Success writes a confirmation line.
func (r *Renderer) Success(s string) {
	r.Println(r.styles.Success.Render(s))
}

// Error writes an error line to the diagnostics writer.
func (r *Renderer) Error(s string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render(s))
}
