// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redinnova/innovanet/internal/api"
	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/internal/auth/memory"
	"github.com/redinnova/innovanet/internal/auth/postgres"
	"github.com/redinnova/innovanet/internal/config"
	"github.com/redinnova/innovanet/internal/observability"
	"github.com/redinnova/innovanet/internal/seed"
)

// shutdownTimeout bounds graceful shutdown of the servers.
const shutdownTimeout = 5 * time.Second

func newServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the credential HTTP API and the observability server.
Seed accounts are created on startup; existing emails are left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, deps)
		},
	}

	cmd.Flags().String("addr", ":8080", "HTTP API listen address")
	cmd.Flags().String("metrics-addr", ":9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("store", config.StorePostgres, "account store (postgres or memory)")
	cmd.Flags().Bool("auto-migrate", false, "apply pending migrations before serving")
	cmd.Flags().String("notify", config.NotifyLog, "recovery code delivery (log or amqp)")
	cmd.Flags().String("seed-file", "", "seed accounts file (default: built-in accounts)")

	return cmd
}

// accountStore is the persistence behind the credential service.
type accountStore struct {
	accounts auth.AccountRepository
	tx       auth.Transactor
	ready    observability.ReadinessChecker
	close    func()
}

// openStore returns the account store selected by cfg.Store.Driver,
// migrating the schema first when asked to.
func openStore(ctx context.Context, cfg config.Config, deps *Deps, logger *slog.Logger) (*accountStore, error) {
	if cfg.Store.Driver == config.StoreMemory {
		s := memory.NewStore()
		logger.Warn("using in-memory account store, accounts are lost on exit")
		return &accountStore{
			accounts: s,
			tx:       s,
			ready:    func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps, logger); err != nil {
			return nil, err
		}
	}

	db, err := openDatabase(ctx, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database")
	return &accountStore{
		accounts: postgres.NewAccountRepository(db),
		tx:       postgres.NewTransactor(db),
		ready:    db.Ping,
		close:    db.Close,
	}, nil
}

// autoMigrate applies pending migrations and always closes the migrator.
func autoMigrate(url string, deps *Deps, logger *slog.Logger) (err error) {
	migrator, err := deps.MigratorFactory(url)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	version, _, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("database schema up to date", "version", version)
	return nil
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := setupLogging(cfg)

	logger.Info("starting innovanet",
		"version", version,
		"store", cfg.Store.Driver,
		"notify", cfg.Notify.Driver,
	)

	backend, err := openStore(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	notifier, closeNotifier, err := deps.NotifierFactory(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up recovery notifier: %w", err)
	}
	defer func() {
		if closeErr := closeNotifier(); closeErr != nil {
			logger.Warn("error closing recovery notifier", "error", closeErr)
		}
	}()

	svc, err := auth.NewCredentialService(backend.accounts, backend.tx, newHasher(cfg),
		auth.WithNotifier(notifier),
		auth.WithRecoveryPolicy(cfg.Auth.RecoveryTTL, cfg.Auth.RecoveryMaxAttempts),
		auth.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create credential service: %w", err)
	}

	seedFile, err := seed.Load(cfg.Seed.File)
	if err != nil {
		return fmt.Errorf("failed to load seed accounts: %w", err)
	}
	seeded, err := seed.Apply(ctx, svc, seedFile, logger)
	if err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}
	logger.Info("seed accounts applied", "created", seeded.Created, "skipped", seeded.Skipped)

	tokens, err := api.NewTokenMaker(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create token maker: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.ready, logger)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	listener, err := deps.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, logger)
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTP.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           api.NewHandler(svc, tokens, logger).Routes(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
		close(errChan)
	}()

	cmd.Printf("InnovaNet API listening on %s\n", listener.Addr())
	logger.Info("api ready", "addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err, ok := <-errChan:
		if ok {
			serveErr = fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping HTTP server", "error", err)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return serveErr
}

func stopObservability(obsServer ObservabilityServer, logger *slog.Logger) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
