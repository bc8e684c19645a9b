package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/liamcoop/ruleweave/internal/logger"
	"github.com/liamcoop/ruleweave/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply the embedded rule storage schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database", os.Getenv("DATABASE_URL"), "database URL (default $DATABASE_URL)")

	// withMigrator opens the database and hands a migrator to fn
	withMigrator := func(fn func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("database URL is required: use --database or DATABASE_URL")
			}
			db, err := sql.Open("postgres", databaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			m, err := migrations.New(db)
			if err != nil {
				db.Close()
				return err
			}
			defer m.Close()
			return fn(m, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migrate.Migrate, _ []string) error {
				err := m.Up()
				if errors.Is(err, migrate.ErrNoChange) {
					logger.Info("no migrations to run, database is up to date")
					return nil
				}
				if err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				logger.Info("migrations completed")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migrate.Migrate, _ []string) error {
				if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migrate down: %w", err)
				}
				logger.Info("rollback completed")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migrate.Migrate, _ []string) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					logger.Info("no migrations applied")
					return nil
				}
				if err != nil {
					return fmt.Errorf("migrate version: %w", err)
				}
				logger.Info("current schema version", "version", version, "dirty", dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Mark the schema as a version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m *migrate.Migrate, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version number %q: %w", args[0], err)
				}
				if err := m.Force(version); err != nil {
					return fmt.Errorf("migrate force: %w", err)
				}
				logger.Info("forced schema version", "version", version)
				return nil
			}),
		},
	)

	return root
}
