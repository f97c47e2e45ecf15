package commands

import (
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/leapstack-labs/pkshell/internal/cli/config"
	"github.com/leapstack-labs/pkshell/internal/ui"
	"github.com/spf13/cobra"
)

// UIOptions holds options for the ui command.
type UIOptions struct {
	Listen      string
	Open        bool
	SessionIdle time.Duration
}

// NewUICommand creates the ui command.
func NewUICommand() *cobra.Command {
	opts := &UIOptions{}

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the shell in a web browser",
		Long: `Start a local web server with the same sidebar and query pane as the
terminal shell.

Every browser gets its own selection. Changes stream to the page over
server-sent events, so the sidebar follows the selection while schemas and
tables load.

The session cookie is signed with ui.session_secret
(PKSHELL_UI__SESSION_SECRET). Without one a key is generated at start.`,
		Example: `  # Start on the default address
  pkshell ui

  # Listen elsewhere and open a browser
  pkshell ui --listen 127.0.0.1:3000 --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", config.DefaultUIAddr, "Address to serve the UI on")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the UI in the default browser")
	cmd.Flags().DurationVar(&opts.SessionIdle, "session-idle", config.DefaultSessionIdle, "Drop browser sessions idle this long")

	return cmd
}

func runUI(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	uc := cc.Cfg.GetUIConfig()

	server, err := ui.NewServer(ui.Config{
		Catalog:         cc.Client,
		Executor:        cc.Client,
		Translator:      cc.Translator,
		Addr:            uc.Addr,
		SessionSecret:   uc.SessionSecret,
		SessionIdle:     uc.SessionIdle,
		AttachSelection: cc.Cfg.AttachSelection,
		Logger:          cc.Logger,
	})
	if err != nil {
		return err
	}

	url := "http://" + uc.Addr
	if uc.Open {
		go openBrowser(url)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving the UI for %s on %s\n", cc.Client.BaseURL(), url)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return server.ListenAndServe(cmd.Context())
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
