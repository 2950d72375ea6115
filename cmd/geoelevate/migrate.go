// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geoelevate/geoelevate/internal/config"
	"github.com/geoelevate/geoelevate/internal/store"
)

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// Getenv looks up environment overrides.
	// Default: os.Getenv
	Getenv func(string) string
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	if d == nil {
		d = &MigrateDeps{}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	return d
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back or inspect the PostgreSQL schema. With no subcommand,
all pending migrations are applied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return migrateUp(cmd, m)
			})
		},
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (env "+config.EnvDatabaseURL+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return migrateUp(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printStatus(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use after
repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force version").With("version", version).Wrap(err)
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator and closes it
// after fn returns.
func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	databaseURL, err := getDatabaseURL(cmd, deps.Getenv)
	if err != nil {
		return err
	}

	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()

	return fn(m)
}

// getDatabaseURL reads the URL from the config file, the database-url flag
// and the environment, in increasing precedence.
func getDatabaseURL(cmd *cobra.Command, getenv func(string) string) (string, error) {
	path, err := resolveConfigFile(getenv)
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(cmd.Flags(), path, getenv)
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database url is required (set %s)", config.EnvDatabaseURL)
	}
	return cfg.DatabaseURL, nil
}

func migrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	status, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read status").Wrap(err)
	}

	name := status.Name
	if name == "" {
		name = "none"
	}
	cmd.Printf("Version: %d (%s)\n", status.Version, name)
	cmd.Printf("Dirty:   %t\n", status.Dirty)
	cmd.Printf("Applied: %s\n", formatVersions(status.Applied))
	cmd.Printf("Pending: %s\n", formatVersions(status.Pending))
	if status.Dirty {
		cmd.Println("The schema is dirty. Repair it, then run 'geoelevate migrate force <version>'.")
	}
	return nil
}

func formatVersions(versions []uint) string {
	if len(versions) == 0 {
		return "none"
	}
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// parseForceVersion reads a leading integer from s. Trailing characters are
// ignored, matching fmt.Sscanf.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("invalid version %q: must be an integer", s)
	}
	return version, nil
}
