// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/redinnova/innovanet/internal/auth"
)

// Transactor implements auth.Transactor on a connection pool.
// The active pgx.Tx travels in the context, so AccountRepository calls made
// with that context join the transaction and lock the rows they read.
type Transactor struct {
	pool poolIface
}

var _ auth.Transactor = (*Transactor)(nil)

// NewTransactor creates a Transactor backed by pool.
func NewTransactor(pool poolIface) *Transactor {
	return &Transactor{pool: pool}
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// The transaction commits if fn returns nil and rolls back otherwise.
// Calls nested inside a transaction join it.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
