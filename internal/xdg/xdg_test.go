// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/innovanet", ConfigDir())
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	assert.Equal(t, "/home/testuser/.config/innovanet", ConfigDir())
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/innovanet/config.yaml", ConfigFile())
}

func TestFindConfigFile_Missing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	got, err := FindConfigFile()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindConfigFile_Present(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	dir := filepath.Join(base, "innovanet")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	got, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
