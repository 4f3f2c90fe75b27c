// Package main provides a CLI tool for the accounts schema migrations.
// Migrations are embedded in the binary; -path switches to a directory on disk.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/welldanyogia/auth-system/internal/config"
	"github.com/welldanyogia/auth-system/internal/logger"
	"github.com/welldanyogia/auth-system/migrations"
)

// Version is set at build time
var Version = "dev"

const defaultMigrationTimeout = 5 * time.Minute

// options holds migration settings
type options struct {
	DatabaseURL    string
	MigrationsPath string
	Timeout        time.Duration
	DryRun         bool
}

func main() {
	cfg := config.Load()
	log := logger.Named(logger.New(cfg.Logging), "migrate")

	var (
		dbURL    = flag.String("database-url", cfg.Database.URL(), "PostgreSQL connection URL (defaults to DB_* variables)")
		migrPath = flag.String("path", os.Getenv("MIGRATIONS_PATH"), "Migrations directory (empty uses the embedded set)")
		timeout  = flag.Duration("timeout", defaultMigrationTimeout, "Connection and lock timeout")
		dryRun   = flag.Bool("dry-run", false, "Show what would be done without executing")
		version  = flag.Bool("version", false, "Print version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  up [N]       Apply all or N up migrations\n")
		fmt.Fprintf(os.Stderr, "  down [N]     Roll back all or N migrations\n")
		fmt.Fprintf(os.Stderr, "  goto V       Migrate to version V\n")
		fmt.Fprintf(os.Stderr, "  force V      Set version V without running migrations\n")
		fmt.Fprintf(os.Stderr, "  version      Print current migration version\n")
		fmt.Fprintf(os.Stderr, "  create NAME  Create a new migration file pair under -path\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("migrate version %s\n", Version)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	opts := &options{
		DatabaseURL:    *dbURL,
		MigrationsPath: *migrPath,
		Timeout:        *timeout,
		DryRun:         *dryRun,
	}

	if err := run(opts, log, args[0], args[1:]); err != nil {
		log.Error("Migration command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

// run executes a single migration command
func run(opts *options, log *slog.Logger, cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) < 1 {
			return errors.New("create requires a migration name")
		}
		return createMigration(opts, log, args[0])
	case "version":
		return withMigrate(opts, func(m *migrate.Migrate) error {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info("No migrations have been applied yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("get version: %w", err)
			}
			log.Info("Current migration version", "version", v, "dirty", dirty)
			return nil
		})
	case "up", "down":
		steps, err := optionalInt(args)
		if err != nil {
			return err
		}
		if opts.DryRun {
			log.Info("Dry run", "command", cmd, "steps", steps)
			return nil
		}
		return withMigrate(opts, func(m *migrate.Migrate) error {
			return step(m, log, cmd, steps)
		})
	case "goto", "force":
		if len(args) < 1 {
			return fmt.Errorf("%s requires a version number", cmd)
		}
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		if opts.DryRun {
			log.Info("Dry run", "command", cmd, "version", v)
			return nil
		}
		return withMigrate(opts, func(m *migrate.Migrate) error {
			if cmd == "force" {
				return m.Force(v)
			}
			return ignoreNoChange(m.Migrate(uint(v)), log)
		})
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func step(m *migrate.Migrate, log *slog.Logger, direction string, steps int) error {
	from, _, _ := m.Version()

	var err error
	switch {
	case steps > 0 && direction == "down":
		err = m.Steps(-steps)
	case steps > 0:
		err = m.Steps(steps)
	case direction == "down":
		err = m.Down()
	default:
		err = m.Up()
	}
	if err := ignoreNoChange(err, log); err != nil {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}

	to, _, _ := m.Version()
	log.Info("Migration completed", "direction", direction, "from", from, "to", to)
	return nil
}

func ignoreNoChange(err error, log *slog.Logger) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No migrations to apply")
		return nil
	}
	return err
}

func optionalInt(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number of steps: %s", args[0])
	}
	return n, nil
}

// createMigration writes an empty up/down pair with the next sequence number
func createMigration(opts *options, log *slog.Logger, name string) error {
	if opts.MigrationsPath == "" {
		return errors.New("create requires -path")
	}

	next, err := nextMigrationNumber(opts.MigrationsPath)
	if err != nil {
		return fmt.Errorf("determine next migration number: %w", err)
	}

	upFile := filepath.Join(opts.MigrationsPath, fmt.Sprintf("%06d_%s.up.sql", next, name))
	downFile := filepath.Join(opts.MigrationsPath, fmt.Sprintf("%06d_%s.down.sql", next, name))

	if opts.DryRun {
		log.Info("Dry run", "would_create", []string{upFile, downFile})
		return nil
	}

	if err := os.MkdirAll(opts.MigrationsPath, 0o755); err != nil {
		return fmt.Errorf("create migrations directory: %w", err)
	}
	header := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(header), 0o644); err != nil {
		return fmt.Errorf("create up migration: %w", err)
	}
	if err := os.WriteFile(downFile, []byte(header), 0o644); err != nil {
		return fmt.Errorf("create down migration: %w", err)
	}

	log.Info("Created migration files", "up", upFile, "down", downFile)
	return nil
}

func nextMigrationNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, entry := range entries {
		var n int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// withMigrate opens the database and migration source, runs fn, then closes both
func withMigrate(opts *options, fn func(*migrate.Migrate) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	db, err := sql.Open("pgx", opts.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		db.Close()
		return fmt.Errorf("create database driver: %w", err)
	}

	var m *migrate.Migrate
	if opts.MigrationsPath == "" {
		src, serr := iofs.New(migrations.FS, ".")
		if serr != nil {
			db.Close()
			return fmt.Errorf("open embedded migrations: %w", serr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
	} else {
		abs, aerr := filepath.Abs(opts.MigrationsPath)
		if aerr != nil {
			db.Close()
			return fmt.Errorf("resolve migrations path: %w", aerr)
		}
		m, err = migrate.NewWithDatabaseInstance("file://"+abs, "postgres", driver)
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	m.LockTimeout = opts.Timeout
	return fn(m)
}
