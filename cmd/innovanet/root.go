package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/internal/auth/postgres"
	"github.com/redinnova/innovanet/internal/config"
	"github.com/redinnova/innovanet/internal/logging"
	"github.com/redinnova/innovanet/internal/store"
	"github.com/redinnova/innovanet/internal/xdg"
)

const serviceName = "innovanet"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the InnovaNet CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "innovanet",
		Short: "InnovaNet - credential service for the innovation network",
		Long: `InnovaNet manages the accounts of the innovation network: login with
enrollment codes, password recovery codes and the account directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/innovanet/config.yaml)")
	cmd.PersistentFlags().String("log-format", "json", "log format (json or text)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $"+config.DatabaseURLEnv+")")

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newSeedCmd(deps))
	cmd.AddCommand(newAccountsCmd(deps))

	return cmd
}

// loadConfig reads the config file and the flags of cmd. Without --config
// the XDG config file is used when present.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configFile
	if path == "" {
		found, err := xdg.FindConfigFile()
		if err != nil {
			return config.Config{}, oops.Code("CONFIG_READ_FAILED").With("path", xdg.ConfigFile()).Wrap(err)
		}
		path = found
	}
	return config.Load(path, cmd.Flags())
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg config.Config) *slog.Logger {
	return logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
}

// newHasher builds the password hasher described by cfg.
func newHasher(cfg config.Config) *auth.Argon2idHasher {
	return auth.NewArgon2idHasher(auth.Argon2Params{
		Time:    cfg.Auth.Argon2.Time,
		Memory:  cfg.Auth.Argon2.Memory,
		Threads: cfg.Auth.Argon2.Threads,
	})
}

// openDatabase connects to the configured database, retrying for up to the
// connect timeout.
func openDatabase(ctx context.Context, cfg config.Config, deps *Deps) (Database, error) {
	policy := store.DefaultRetryPolicy
	policy.MaxDuration = cfg.Database.ConnectTimeout
	return deps.DatabaseOpener(ctx, cfg.Database.URL, policy)
}

// newPostgresService builds a credential service over db for the
// maintenance commands.
func newPostgresService(cfg config.Config, db Database, logger *slog.Logger) (*auth.CredentialService, error) {
	return auth.NewCredentialService(
		postgres.NewAccountRepository(db),
		postgres.NewTransactor(db),
		newHasher(cfg),
		auth.WithRecoveryPolicy(cfg.Auth.RecoveryTTL, cfg.Auth.RecoveryMaxAttempts),
		auth.WithLogger(logger),
	)
}
