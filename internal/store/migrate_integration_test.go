//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package store_test

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/redinnova/innovanet/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("innovanet_test"),
			postgres.WithUsername("innovanet"),
			postgres.WithPassword("innovanet"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			_ = migrator.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		schema, err := migrator.Schema()
		Expect(err).NotTo(HaveOccurred())
		Expect(schema.Applied).To(BeEmpty())
		Expect(schema.Pending).To(HaveLen(2))
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(dirty).To(BeFalse())
	})

	It("creates a working accounts table", func() {
		pool, err := store.OpenPool(ctx, connStr, store.DefaultRetryPolicy)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		var count int
		Expect(pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())
	})

	It("rejects a half-filled recovery code", func() {
		pool, err := pgxpool.New(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		_, err = pool.Exec(ctx, `
			INSERT INTO accounts (id, email, name, enrollment_code, role, password_hash, recovery_code_hash, created_at, updated_at)
			VALUES ('01HZZZZZZZZZZZZZZZZZZZZZZZ', 'x@example.org', 'X', 'E1', 'manager', 'h', 'abc', now(), now())`)
		Expect(err).To(HaveOccurred())
	})

	It("forces a known version", func() {
		Expect(migrator.Force(1)).To(Succeed())
		schema, err := migrator.Schema()
		Expect(err).NotTo(HaveOccurred())
		Expect(schema.Version).To(Equal(uint(1)))
		Expect(schema.Dirty).To(BeFalse())

		Expect(migrator.Force(2)).To(Succeed())
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})
