// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package main

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newAccountsCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset-password <account-id>",
		Short: "Reset a password back to the enrollment code",
		Long: `Replace the password of an account with its enrollment code and
require a password change at the next login.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetPassword(cmd, args[0], deps)
		},
	})

	return cmd
}

func runResetPassword(cmd *cobra.Command, rawID string, deps *Deps) error {
	deps = deps.withDefaults()

	id, err := ulid.Parse(rawID)
	if err != nil {
		return oops.Code("INVALID_ACCOUNT_ID").With("input", rawID).Wrap(err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	logger := setupLogging(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openDatabase(ctx, cfg, deps)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	svc, err := newPostgresService(cfg, db, logger)
	if err != nil {
		return err
	}

	reset, err := svc.AdminResetPassword(ctx, id)
	if err != nil {
		return err
	}
	if !reset {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id.String()).Errorf("account %s not found", id)
	}
	cmd.Printf("Password of %s reset to its enrollment code\n", id)
	return nil
}
