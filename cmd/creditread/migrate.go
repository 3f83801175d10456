package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/pkg/database"
)

// newMigrateCmd manages the run store schema of the configured database.
// The server applies pending migrations on its own unless store.migrate
// is false; these subcommands cover the cases it does not.
func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the run store schema version",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		migrateCmd(opts, "up", "Apply every pending migration", cobra.NoArgs,
			func(m *migrate.Migrate, _ []string) (string, error) {
				return "migrations applied", ignoreNoChange(m.Up())
			}),
		migrateCmd(opts, "down", "Revert every migration", cobra.NoArgs,
			func(m *migrate.Migrate, _ []string) (string, error) {
				return "migrations reverted", ignoreNoChange(m.Down())
			}),
		migrateCmd(opts, "steps <n>", "Apply n migrations, or revert them when n is negative", cobra.ExactArgs(1),
			func(m *migrate.Migrate, args []string) (string, error) {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return "", fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
				}
				return fmt.Sprintf("moved %d steps", n), ignoreNoChange(m.Steps(n))
			}),
		migrateCmd(opts, "force <version>", "Set the schema version without running migrations", cobra.ExactArgs(1),
			func(m *migrate.Migrate, args []string) (string, error) {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return "", fmt.Errorf("invalid version %q", args[0])
				}
				return fmt.Sprintf("forced version %d", v), m.Force(v)
			}),
		migrateCmd(opts, "version", "Print the current schema version", cobra.NoArgs,
			func(m *migrate.Migrate, _ []string) (string, error) {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					return "no migrations applied", nil
				}
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("version %d (dirty: %t)", v, dirty), nil
			}),
	)
	return cmd
}

func migrateCmd(
	opts *options,
	use, short string,
	args cobra.PositionalArgs,
	run func(m *migrate.Migrate, args []string) (string, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Store.UsesDatabase() {
				return fmt.Errorf("store driver %q has no schema", cfg.Store.Driver)
			}
			logger := opts.logger(cmd.ErrOrStderr())

			sys, err := database.New(&cfg.Database, logger)
			if err != nil {
				return err
			}

			m, err := runs.NewMigrator(sys.Connection(), sys.Driver())
			if err != nil {
				sys.Connection().Close()
				return err
			}
			defer m.Close()

			msg, err := run(m, argv)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
