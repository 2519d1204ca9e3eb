// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/internal/auth/authtest"
	"github.com/redinnova/innovanet/internal/auth/postgres"
)

var _ = Describe("AccountRepository", func() {
	var (
		ctx   context.Context
		repo  *postgres.AccountRepository
		clock *authtest.FakeClock
		svc   *auth.CredentialService
	)

	BeforeEach(func() {
		ctx = context.Background()
		_, err := testPool.Exec(ctx, `TRUNCATE accounts`)
		Expect(err).NotTo(HaveOccurred())

		repo = postgres.NewAccountRepository(testPool)
		clock = authtest.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
		svc, err = auth.NewCredentialService(repo, postgres.NewTransactor(testPool), authtest.FastHasher(),
			auth.WithClock(clock),
			auth.WithCodeGenerator(authtest.NewSequenceCodes("A1B2C3", "D4E5F6")),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	register := func(email string) *auth.Account {
		account, err := svc.Register(ctx, auth.RegistrationData{
			Name:           "Ana",
			LastName:       "García",
			EnrollmentCode: "MED-2024",
			Email:          email,
			Center:         "IES Norte",
		})
		Expect(err).NotTo(HaveOccurred())
		return account
	}

	It("round-trips every column", func() {
		created := register("ana@example.org")

		got, err := repo.GetByID(ctx, created.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Email).To(Equal("ana@example.org"))
		Expect(got.LastName).To(Equal("García"))
		Expect(got.Role).To(Equal(auth.RoleManager))
		Expect(got.PasswordChangeRequired).To(BeTrue())
		Expect(got.Recovery).To(BeNil())
		Expect(got.CreatedAt.Equal(created.CreatedAt)).To(BeTrue())
	})

	It("rejects a duplicate email", func() {
		register("ana@example.org")
		err := repo.Create(ctx, &auth.Account{
			ID:             ulid.Make(),
			Email:          "ana@example.org",
			Name:           "Otra",
			EnrollmentCode: "X",
			Role:           auth.RoleGuest,
			PasswordHash:   "h",
		})
		Expect(errors.Is(err, auth.ErrDuplicateEmail)).To(BeTrue())
	})

	It("matches email exactly", func() {
		register("ana@example.org")
		_, err := repo.GetByEmail(ctx, "Ana@example.org")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("stores and clears a recovery code", func() {
		register("ana@example.org")

		code, err := svc.IssueRecoveryCode(ctx, "ana@example.org")
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal("A1B2C3"))

		got, err := repo.GetByEmail(ctx, "ana@example.org")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Recovery).NotTo(BeNil())
		Expect(got.Recovery.ExpiresAt.Equal(clock.Now().Add(auth.DefaultRecoveryTTL))).To(BeTrue())

		ok, err := svc.ResetPassword(ctx, "ana@example.org", "A1B2C3", "nueva-clave")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		got, err = repo.GetByEmail(ctx, "ana@example.org")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Recovery).To(BeNil())
	})

	It("counts concurrent verification attempts exactly once each", func() {
		register("ana@example.org")
		_, err := svc.IssueRecoveryCode(ctx, "ana@example.org")
		Expect(err).NotTo(HaveOccurred())

		var successes atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				ok, err := svc.VerifyRecoveryCode(ctx, "ana@example.org", "A1B2C3")
				Expect(err).NotTo(HaveOccurred())
				if ok {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()

		Expect(successes.Load()).To(Equal(int32(auth.DefaultRecoveryMaxAttempts - 1)))
	})

	It("lists accounts in creation order", func() {
		first := register("ana@example.org")
		clock.Advance(time.Minute)
		second := register("luis@example.org")

		accounts, err := repo.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(HaveLen(2))
		Expect(accounts[0].ID).To(Equal(first.ID))
		Expect(accounts[1].ID).To(Equal(second.ID))
	})

	It("deletes accounts", func() {
		account := register("ana@example.org")
		Expect(repo.Delete(ctx, account.ID)).To(Succeed())
		Expect(errors.Is(repo.Delete(ctx, account.ID), auth.ErrNotFound)).To(BeTrue())
	})
})
