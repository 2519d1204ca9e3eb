// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/redinnova/innovanet/internal/seed"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

func newSeedCmd(deps *Deps) *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the seed accounts",
		Long: `Creates the accounts listed in the seed file, or the built-in
administrator when no file is given. Accounts whose email already exists are
skipped, so running it twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg, deps)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "seed accounts file (default: seed.file from the config)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, seedCfg *seedConfig, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	logger := setupLogging(cfg)

	path := cfg.Seed.File
	if seedCfg.file != "" {
		path = seedCfg.file
	}
	accounts, err := seed.Load(path)
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	db, err := openDatabase(ctx, cfg, deps)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	svc, err := newPostgresService(cfg, db, logger)
	if err != nil {
		return err
	}

	res, err := seed.Apply(ctx, svc, accounts, logger)
	if err != nil {
		return err
	}
	cmd.Printf("Seed complete: %d created, %d skipped\n", res.Created, res.Skipped)
	return nil
}
