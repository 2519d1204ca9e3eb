// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema migration.
type Migration struct {
	Version uint
	Name    string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// Migrations lists the embedded migrations by ascending version.
func Migrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").Wrap(err)
	}

	var out []Migration
	for _, entry := range entries {
		stem, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		digits, name, ok := strings.Cut(stem, "_")
		version, err := strconv.ParseUint(digits, 10, 32)
		if !ok || err != nil || version == 0 {
			return nil, oops.Code("MIGRATION_LIST_FAILED").
				With("filename", entry.Name()).
				Errorf("migration file is not named NNNNNN_name.up.sql")
		}
		out = append(out, Migration{Version: uint(version), Name: name})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// Schema is the state of a database against the embedded migrations.
type Schema struct {
	Version uint
	// Dirty is set when the migration at Version failed halfway.
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// driver is the part of *migrate.Migrate the Migrator uses.
type driver interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded migrations to one database.
type Migrator struct {
	d driver
}

// NewMigrator creates a Migrator for a postgres:// or postgresql:// URL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	// golang-migrate registers the pgx/v5 driver under pgx5://.
	url := databaseURL
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			url = "pgx5://" + rest
			break
		}
	}

	d, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	return &Migrator{d: d}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	return m.run("MIGRATION_UP_FAILED", m.d.Up)
}

// Down rolls back every migration, dropping all account data.
func (m *Migrator) Down() error {
	return m.run("MIGRATION_DOWN_FAILED", m.d.Down)
}

func (m *Migrator) run(code string, fn func() error) error {
	if err := fn(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code(code).Wrap(err)
	}
	return nil
}

// Version returns the current schema version, 0 for a fresh database.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.d.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Schema reports the current version and splits the embedded migrations
// into applied and pending.
func (m *Migrator) Schema() (Schema, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return Schema{}, err
	}
	all, err := Migrations()
	if err != nil {
		return Schema{}, err
	}

	s := Schema{Version: version, Dirty: dirty}
	for _, mig := range all {
		if mig.Version <= version {
			s.Applied = append(s.Applied, mig)
		} else {
			s.Pending = append(s.Pending, mig)
		}
	}
	return s, nil
}

// Force records version as applied and clears the dirty flag without running
// anything. version must be one of the embedded migrations.
func (m *Migrator) Force(version int) error {
	all, err := Migrations()
	if err != nil {
		return err
	}
	known := slices.ContainsFunc(all, func(mig Migration) bool {
		return version > 0 && mig.Version == uint(version)
	})
	if !known {
		return oops.Code("INVALID_VERSION").
			With("version", version).
			Errorf("no migration has version %d", version)
	}
	if err := m.d.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the migration source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.d.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
