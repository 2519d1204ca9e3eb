// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "seed", "accounts"})
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"config", "log-format", "log-level", "database-url"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
}

func TestMigrateCommand_Subcommands(t *testing.T) {
	cmd, _, err := NewRootCmd().Find([]string{"migrate"})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "status", "force"}, names)
}

func TestServeCommand_Flags(t *testing.T) {
	cmd, _, err := NewRootCmd().Find([]string{"serve"})
	require.NoError(t, err)

	for _, name := range []string{"addr", "metrics-addr", "store", "auto-migrate", "notify", "seed-file"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, nil, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "innovanet")
	assert.Contains(t, out, "serve")
}
