// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package postgres stores accounts in PostgreSQL.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier abstracts query execution for both the pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// poolIface is satisfied by *pgxpool.Pool and pgxmock pools.
type poolIface interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// querierFromCtx returns the transaction stored by Transactor, or pool.
func querierFromCtx(ctx context.Context, pool querier) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// inTx reports whether ctx carries a transaction.
func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}
