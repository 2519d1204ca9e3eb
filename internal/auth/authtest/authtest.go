// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package authtest provides test doubles for the auth package.
package authtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/redinnova/innovanet/internal/auth"
)

// FakeClock is a Clock that only moves when told to.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock frozen at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequenceCodes hands out the given codes in order, then fails.
type SequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

// NewSequenceCodes creates a generator returning codes in order.
func NewSequenceCodes(codes ...string) *SequenceCodes {
	return &SequenceCodes{codes: codes}
}

// Generate returns the next code.
func (g *SequenceCodes) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", errors.New("no codes left")
	}
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code, nil
}

// FastHasher returns an argon2id hasher with minimal cost for tests.
func FastHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1})
}

// PassthroughTransactor runs fn directly.
type PassthroughTransactor struct{}

// InTransaction calls fn with ctx.
func (PassthroughTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MockAccountRepository is a testify mock of auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock that asserts its expectations on cleanup.
func NewMockAccountRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create records the call.
func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

// GetByID records the call.
func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

// GetByEmail records the call.
func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

// Update records the call.
func (m *MockAccountRepository) Update(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

// List records the call.
func (m *MockAccountRepository) List(ctx context.Context) ([]*auth.Account, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*auth.Account)
	return list, args.Error(1)
}

// Delete records the call.
func (m *MockAccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockNotifier is a testify mock of auth.RecoveryNotifier.
type MockNotifier struct {
	mock.Mock
}

// NotifyRecoveryCode records the call.
func (m *MockNotifier) NotifyRecoveryCode(ctx context.Context, msg auth.RecoveryMessage) error {
	return m.Called(ctx, msg).Error(0)
}

// Compile-time interface checks.
var (
	_ auth.Clock             = (*FakeClock)(nil)
	_ auth.CodeGenerator     = (*SequenceCodes)(nil)
	_ auth.Transactor        = PassthroughTransactor{}
	_ auth.AccountRepository = (*MockAccountRepository)(nil)
	_ auth.RecoveryNotifier  = (*MockNotifier)(nil)
)
