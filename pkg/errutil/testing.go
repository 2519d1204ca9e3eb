// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops stops the test unless err wraps an oops error.
func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.Truef(t, ok, "want an oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that the innermost oops code in err's chain is code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	assert.Equalf(t, code, requireOops(t, err).Code(), "error: %v", err)
}

// AssertErrorContext asserts that err carries key with value in its oops context.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	got, ok := ctx[key]
	if assert.Truef(t, ok, "no %q in error context %v", key, ctx) {
		assert.Equalf(t, value, got, "error context %q", key)
	}
}

// AssertNoErrorContext asserts that none of keys appear in err's oops context.
// Errors are logged with their context, so secrets must never be attached.
func AssertNoErrorContext(t testing.TB, err error, keys ...string) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	for _, key := range keys {
		assert.NotContainsf(t, ctx, key, "error context leaks %q", key)
	}
}
