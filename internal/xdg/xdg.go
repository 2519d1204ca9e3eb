// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package xdg locates innovanet files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const appName = "innovanet"

// ConfigDir returns the XDG config directory for innovanet.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the path of the default config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// FindConfigFile returns ConfigFile() if it exists and "" otherwise.
func FindConfigFile() (string, error) {
	path := ConfigFile()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		return "", err
	}
}
