// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back, inspect or force the database schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printMigrationStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag.
Use this to recover after a failed migration has been fixed by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads the configuration, creates a migrator, runs fn and
// closes the migrator.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	setupLogging(cfg)

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	return fn(m)
}

func printMigrationStatus(cmd *cobra.Command, m Migrator) error {
	schema, err := m.Schema()
	if err != nil {
		return err
	}

	state := "clean"
	if schema.Dirty {
		state = "dirty"
	}
	cmd.Printf("Schema version: %d (%s)\n", schema.Version, state)
	cmd.Printf("Applied (%d):\n", len(schema.Applied))
	for _, mig := range schema.Applied {
		cmd.Printf("  %s\n", mig)
	}
	cmd.Printf("Pending (%d):\n", len(schema.Pending))
	for _, mig := range schema.Pending {
		cmd.Printf("  %s\n", mig)
	}
	if schema.Dirty {
		cmd.Println("The last migration failed; fix the schema and run 'innovanet migrate force <version>'.")
	}
	return nil
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}
