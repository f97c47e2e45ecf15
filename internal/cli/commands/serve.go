package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/pkshell/internal/cli/config"
	"github.com/leapstack-labs/pkshell/internal/devserver"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr           string
	Driver         string
	DataDir        string
	DSN            string
	Migrations     string
	Demo           bool
	Watch          bool
	MaxConns       int
	MaxRows        int
	AllowedOrigins []string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference backend",
		Long: `Serve databases over the HTTP API the shell talks to.

The sqlite driver exposes every .db/.sqlite file in the data directory as a
database with a single "main" schema. The postgres driver exposes the
databases of one PostgreSQL server.`,
		Example: `  # Serve ./data with the demo database
  pkshell serve --demo

  # Serve a PostgreSQL server
  pkshell serve --driver postgres --dsn "postgres://localhost/postgres"

  # Apply migrations/<database>/*.sql before serving
  pkshell serve --migrations ./migrations`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Values land in config through the flag bindings; the defaults shown
	// here are only for help output.
	cmd.Flags().StringVar(&opts.Addr, "addr", config.DefaultServeAddr, "Listen address")
	cmd.Flags().StringVar(&opts.Driver, "driver", config.DefaultDriver, "Backend driver (sqlite|postgres)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", config.DefaultDataDir, "Directory of SQLite files")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string")
	cmd.Flags().StringVar(&opts.Migrations, "migrations", "", "Apply migrations from this directory on start")
	cmd.Flags().BoolVar(&opts.Demo, "demo", false, "Create the demo database (sqlite only)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rescan the data directory when files change")
	cmd.Flags().IntVar(&opts.MaxConns, "max-conns", config.DefaultMaxConns, "Maximum concurrent connections (0 for no limit)")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", config.DefaultMaxRows, "Maximum rows returned per query")
	cmd.Flags().StringSliceVar(&opts.AllowedOrigins, "allowed-origins", nil, "CORS origins allowed to call the API")

	_ = cmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.DriverSQLite, config.DriverPostgres}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg := getConfig()
	sc := cfg.GetServeConfig()
	logger := config.GetLogger(cmd.Context())
	ctx := cmd.Context()

	driver, err := openDriver(sc, logger)
	if err != nil {
		return err
	}
	defer func() { _ = driver.Close() }()

	if sc.Demo {
		seeder, ok := driver.(devserver.DemoSeeder)
		if !ok {
			return fmt.Errorf("--demo is not supported by the %s driver", driver.Name())
		}
		if err := seeder.SeedDemo(ctx); err != nil {
			return fmt.Errorf("seed demo database: %w", err)
		}
	}

	if sc.Migrations != "" {
		m, ok := driver.(devserver.Migrator)
		if !ok {
			return fmt.Errorf("migrations are not supported by the %s driver", driver.Name())
		}
		if err := m.Migrate(ctx, sc.Migrations); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	server := devserver.NewServer(devserver.Config{
		Driver:         driver,
		Addr:           sc.Addr,
		MaxConns:       sc.MaxConns,
		Watch:          sc.Watch,
		AllowedOrigins: sc.AllowedOrigins,
		Logger:         logger,
	})

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving %s backend on http://%s\n", driver.Name(), sc.Addr)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return server.ListenAndServe(ctx)
}

// openDriver builds the backend driver named by the serve config.
func openDriver(sc *config.ServeConfig, logger *slog.Logger) (devserver.Driver, error) {
	switch sc.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(sc.DataDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return devserver.NewSQLiteDriver(sc.DataDir, sc.MaxRows, logger)
	case config.DriverPostgres:
		dsn := sc.DSN
		if dsn == "" {
			dsn = devserver.BuildPostgresDSN(postgresOptions(sc.Postgres))
		}
		return devserver.NewPostgresDriver(dsn, sc.MaxRows, logger)
	default:
		return nil, errors.New("unknown driver: " + sc.Driver)
	}
}

func postgresOptions(p *config.PostgresConfig) devserver.PostgresOptions {
	if p == nil {
		return devserver.PostgresOptions{}
	}
	return devserver.PostgresOptions{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
		Options:  p.Options,
	}
}
