package devserver

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/demo/*.sql
var demoMigrations embed.FS

// DemoDatabase is the name of the database created by SeedDemo.
const DemoDatabase = "demo"

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Migrator applies per-database migration directories.
type Migrator interface {
	// Migrate applies every <root>/<database>/ directory to the database
	// of the same name.
	Migrate(ctx context.Context, root string) error
}

// DemoSeeder is implemented by drivers that can create the demo database.
type DemoSeeder interface {
	SeedDemo(ctx context.Context) error
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func migrate(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, dir string, logger *slog.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(gooseLogger{logger: logger})
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// migrationDirs returns the database names that have a migration directory
// under root.
func migrationDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// SeedDemo creates or upgrades the demo database from the embedded
// migrations.
func (d *SQLiteDriver) SeedDemo(ctx context.Context) error {
	if err := d.migrateFile(ctx, DemoDatabase, demoMigrations, "migrations/demo"); err != nil {
		return err
	}
	return d.Rescan()
}

// Migrate applies on-disk migrations, creating database files as needed.
func (d *SQLiteDriver) Migrate(ctx context.Context, root string) error {
	names, err := migrationDirs(root)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := d.migrateFile(ctx, name, nil, filepath.Join(root, name)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		d.logger.Info("database migrated", "database", name)
	}
	if err := d.Rescan(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *SQLiteDriver) migrateFile(ctx context.Context, name string, fsys fs.FS, dir string) error {
	db, err := sql.Open("sqlite", "file:"+d.Path(name)+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = db.Close() }()
	return migrate(ctx, db, "sqlite", fsys, dir, d.logger)
}

// Migrate applies on-disk migrations to existing databases.
func (d *PostgresDriver) Migrate(ctx context.Context, root string) error {
	names, err := migrationDirs(root)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		db, err := d.conn(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := migrate(ctx, db, "postgres", nil, filepath.Join(root, name), d.logger); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, classify(name, err)))
			continue
		}
		d.logger.Info("database migrated", "database", name)
	}
	return errors.Join(errs...)
}
