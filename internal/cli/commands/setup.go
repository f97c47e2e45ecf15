package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/pkshell/internal/api"
	"github.com/leapstack-labs/pkshell/internal/cli/config"
	"github.com/leapstack-labs/pkshell/internal/cli/output"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/querypane"
	"github.com/leapstack-labs/pkshell/internal/selection"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg        *config.Config
	Logger     *slog.Logger
	Translator *locale.Translator
	Client     *api.Client
	Store      *selection.Store
}

// NewCommandContext creates a CommandContext with a backend client.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	tr, err := locale.New(cfg.Locale)
	if err != nil {
		return nil, err
	}

	client, err := api.New(api.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}

	return &CommandContext{
		Cfg:        cfg,
		Logger:     logger,
		Translator: tr,
		Client:     client,
		Store:      selection.NewStore(),
	}, nil
}

// Navigator builds a navigator over the context's store and client.
func (c *CommandContext) Navigator() *navigator.Navigator {
	return navigator.New(navigator.Options{
		Store:      c.Store,
		Catalog:    c.Client,
		Translator: c.Translator,
		Logger:     c.Logger,
	})
}

// QueryPane builds a query pane that targets the context's selection when
// attach_selection is enabled.
func (c *CommandContext) QueryPane() *querypane.Pane {
	opts := querypane.Options{
		Executor:   c.Client,
		Translator: c.Translator,
		Logger:     c.Logger,
	}
	if c.Cfg.AttachSelection {
		store := c.Store
		opts.Target = func() (string, string) {
			cur := store.Current()
			return cur.Database, cur.Schema
		}
	}
	return querypane.New(opts)
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// defaults read from the environment.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		APIURL:          getEnvOrDefault("PKSHELL_API_URL", config.DefaultAPIURL),
		Timeout:         config.DefaultTimeout,
		Locale:          getEnvOrDefault("PKSHELL_LOCALE", config.DefaultLocale),
		Verbose:         os.Getenv("PKSHELL_VERBOSE") == "true",
		Output:          getEnvOrDefault("PKSHELL_OUTPUT", config.DefaultOutput),
		AttachSelection: true,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Renderer returns an output renderer for cmd in the given format, falling
// back to the configured output mode.
func (c *CommandContext) Renderer(cmd *cobra.Command, format string) *output.Renderer {
	if format == "" {
		format = c.Cfg.Output
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(format))
}
