// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/redinnova/innovanet/internal/api"
	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/internal/config"
	"github.com/redinnova/innovanet/internal/notify"
	"github.com/redinnova/innovanet/internal/observability"
	"github.com/redinnova/innovanet/internal/store"
)

// Deps contains injectable dependencies for the innovanet commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// DatabaseOpener connects to PostgreSQL.
	// Default: store.OpenPool
	DatabaseOpener func(ctx context.Context, url string, policy store.RetryPolicy) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// NotifierFactory creates the recovery code notifier selected by cfg and
	// a func releasing it.
	// Default: newNotifier
	NotifierFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.RecoveryNotifier, func() error, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer with the auth and api metrics
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Listen creates the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)
}

// withDefaults returns a copy of d with nil fields set to their defaults.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseOpener == nil {
		out.DatabaseOpener = func(ctx context.Context, url string, policy store.RetryPolicy) (Database, error) {
			pool, err := store.OpenPool(ctx, url, policy)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.NotifierFactory == nil {
		out.NotifierFactory = newNotifier
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger, auth.RegisterMetrics, api.RegisterMetrics)
		}
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	return &out
}

// Database wraps the methods used from *pgxpool.Pool.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Schema() (store.Schema, error)
	Force(version int) error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// newNotifier returns the notifier selected by cfg.Notify.Driver.
func newNotifier(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.RecoveryNotifier, func() error, error) {
	if cfg.Notify.Driver == config.NotifyAMQP {
		n, err := notify.DialAMQP(ctx, cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Queue, cfg.Database.ConnectTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	}
	return notify.NewLogNotifier(logger), func() error { return nil }, nil
}
