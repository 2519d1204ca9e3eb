// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package memory provides a process-local account directory.
//
// All transactions are serialized on one mutex. Writes made inside a failed
// transaction are rolled back. Missing accounts and taken emails wrap the auth
// sentinels without an error code, so the caller's code is the one reported.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/redinnova/innovanet/internal/auth"
)

// Store is an in-memory auth.AccountRepository and auth.Transactor.
type Store struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
}

// Compile-time interface checks.
var (
	_ auth.AccountRepository = (*Store)(nil)
	_ auth.Transactor        = (*Store)(nil)
)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

type txKey struct{}

// journal remembers the state of every account touched by a transaction.
// A nil entry means the account did not exist before.
type journal struct {
	before map[ulid.ULID]*auth.Account
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(txKey{}).(*journal)
	return j
}

// InTransaction runs fn while holding the store's transaction lock.
// Nested calls join the outer transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{before: make(map[ulid.ULID]*auth.Account)}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.rollback(j)
		return err
	}
	return nil
}

func (s *Store) rollback(j *journal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, prev := range j.before {
		if cur, ok := s.byID[id]; ok {
			delete(s.byEmail, cur.Email)
			delete(s.byID, id)
		}
		if prev != nil {
			s.byID[id] = prev
			s.byEmail[prev.Email] = id
		}
	}
}

// remember records the pre-transaction state of id. Callers hold s.mu.
func (s *Store) remember(ctx context.Context, id ulid.ULID) {
	j := journalFrom(ctx)
	if j == nil {
		return
	}
	if _, seen := j.before[id]; seen {
		return
	}
	j.before[id] = s.byID[id].Clone()
}

// Create stores a new account.
func (s *Store) Create(ctx context.Context, account *auth.Account) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[account.Email]; taken {
		return oops.With("email", account.Email).Wrap(auth.ErrDuplicateEmail)
	}
	if _, taken := s.byID[account.ID]; taken {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("account_id", account.ID.String()).
			Errorf("account id already exists")
	}

	s.remember(ctx, account.ID)
	s.byID[account.ID] = account.Clone()
	s.byEmail[account.Email] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (s *Store) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").Wrap(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, oops.With("account_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return account.Clone(), nil
}

// GetByEmail retrieves an account by exact email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").Wrap(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	return s.byID[id].Clone(), nil
}

// Update replaces the stored account.
func (s *Store) Update(ctx context.Context, account *auth.Account) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[account.ID]
	if !ok {
		return oops.With("account_id", account.ID.String()).Wrap(auth.ErrNotFound)
	}
	if current.Email != account.Email {
		if _, taken := s.byEmail[account.Email]; taken {
			return oops.With("email", account.Email).Wrap(auth.ErrDuplicateEmail)
		}
		delete(s.byEmail, current.Email)
		s.byEmail[account.Email] = account.ID
	}

	s.remember(ctx, account.ID)
	s.byID[account.ID] = account.Clone()
	return nil
}

// List returns all accounts ordered by creation time, then ID.
func (s *Store) List(ctx context.Context) ([]*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").Wrap(err)
	}

	s.mu.RLock()
	accounts := make([]*auth.Account, 0, len(s.byID))
	for _, a := range s.byID {
		accounts = append(accounts, a.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID.Compare(accounts[j].ID) < 0
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// Delete removes an account.
func (s *Store) Delete(ctx context.Context, id ulid.ULID) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return oops.With("account_id", id.String()).Wrap(auth.ErrNotFound)
	}
	s.remember(ctx, id)
	delete(s.byEmail, account.Email)
	delete(s.byID, id)
	return nil
}
