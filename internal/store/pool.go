// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package store owns the database schema and connection setup.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy controls how long OpenPool keeps trying to reach the database.
type RetryPolicy struct {
	// Base is the first backoff interval; it doubles on every attempt.
	Base time.Duration
	// Cap bounds a single backoff interval.
	Cap time.Duration
	// MaxDuration bounds the total time spent retrying. Zero means one attempt.
	MaxDuration time.Duration
}

// DefaultRetryPolicy waits up to 30s for the database to come up.
var DefaultRetryPolicy = RetryPolicy{
	Base:        250 * time.Millisecond,
	Cap:         5 * time.Second,
	MaxDuration: 30 * time.Second,
}

func (p RetryPolicy) backoff() retry.Backoff {
	if p.MaxDuration <= 0 {
		return retry.WithMaxRetries(0, retry.NewConstant(time.Millisecond))
	}
	base := p.Base
	if base <= 0 {
		base = DefaultRetryPolicy.Base
	}
	b := retry.NewExponential(base)
	if p.Cap > 0 {
		b = retry.WithCappedDuration(p.Cap, b)
	}
	return retry.WithMaxDuration(p.MaxDuration, b)
}

// pinger is the part of *pgxpool.Pool OpenPool checks.
type pinger interface {
	Ping(ctx context.Context) error
	Close()
}

// OpenPool connects to databaseURL and pings it, retrying with exponential
// backoff until policy.MaxDuration elapses or ctx is done.
func OpenPool(ctx context.Context, databaseURL string, policy RetryPolicy) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitForDatabase(ctx, pool, policy); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, policy RetryPolicy) error {
	attempt := 0
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
