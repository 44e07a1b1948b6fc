// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medtrack/medtrack/internal/store"
)

var (
	pgContainer *postgres.PostgresContainer
	connStr     string
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	pgContainer, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("medtrack_test"),
		postgres.WithUsername("medtrack"),
		postgres.WithPassword("medtrack"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
})

var _ = Describe("Migrator", func() {
	It("applies and rolls back the schema", func() {
		m, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		Expect(m.Up()).To(Succeed())
		version, dirty, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(BeNumerically(">=", 1))

		pending, err := m.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		Expect(m.Down()).To(Succeed())
		version, _, err = m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		Expect(m.Up()).To(Succeed())
	})
})

var _ = Describe("PostgresStore", func() {
	var (
		ctx context.Context
		s   *store.PostgresStore
	)

	BeforeEach(func() {
		ctx = context.Background()

		m, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Up()).To(Succeed())
		Expect(m.Close()).To(Succeed())

		s, err = store.NewPostgresStore(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Ping(ctx)).To(Succeed())
	})

	AfterEach(func() {
		s.Close()
	})

	Describe("Put and Get", func() {
		It("round-trips an item and keeps created_at on update", func() {
			key := fmt.Sprintf("goal-%d", time.Now().UnixNano())
			Expect(s.Put(ctx, store.Item{Table: "goals", Key: key, OwnerID: "u1", Value: []byte(`{"status":"active"}`)})).To(Succeed())

			first, err := s.Get(ctx, "goals", key)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.OwnerID).To(Equal("u1"))
			Expect(first.Value).To(MatchJSON(`{"status":"active"}`))

			Expect(s.Put(ctx, store.Item{Table: "goals", Key: key, OwnerID: "u1", Value: []byte(`{"status":"completed"}`)})).To(Succeed())
			second, err := s.Get(ctx, "goals", key)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Value).To(MatchJSON(`{"status":"completed"}`))
			Expect(second.CreatedAt).To(BeTemporally("==", first.CreatedAt))
		})

		It("reports missing items", func() {
			_, err := s.Get(ctx, "goals", "does-not-exist")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("PutIfAbsent", func() {
		It("admits exactly one concurrent writer", func() {
			key := fmt.Sprintf("user-%d@x.com", time.Now().UnixNano())

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				created int
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					err := s.PutIfAbsent(ctx, store.Item{Table: "users", Key: key, Value: []byte(`{}`)})
					if err == nil {
						mu.Lock()
						created++
						mu.Unlock()
						return
					}
					Expect(errors.Is(err, store.ErrAlreadyExists)).To(BeTrue())
				}()
			}
			wg.Wait()
			Expect(created).To(Equal(1))
		})
	})

	Describe("Query", func() {
		It("returns owned and shared items newest first", func() {
			patient := fmt.Sprintf("p-%d", time.Now().UnixNano())
			doctor := "d-" + patient
			base := time.Now().UTC().Truncate(time.Millisecond)

			Expect(s.Put(ctx, store.Item{Table: "appointments", Key: patient + "-1", OwnerID: patient, ParticipantID: doctor, Value: []byte(`{}`), CreatedAt: base})).To(Succeed())
			Expect(s.Put(ctx, store.Item{Table: "appointments", Key: patient + "-2", OwnerID: patient, Value: []byte(`{}`), CreatedAt: base.Add(time.Second)})).To(Succeed())

			owned, err := s.Query(ctx, "appointments", store.Query{OwnerID: patient})
			Expect(err).NotTo(HaveOccurred())
			Expect(owned).To(HaveLen(2))
			Expect(owned[0].Key).To(Equal(patient + "-2"))

			shared, err := s.Query(ctx, "appointments", store.Query{OwnerID: doctor})
			Expect(err).NotTo(HaveOccurred())
			Expect(shared).To(HaveLen(1))
			Expect(shared[0].Key).To(Equal(patient + "-1"))
		})
	})

	Describe("Delete", func() {
		It("is idempotent", func() {
			Expect(s.Put(ctx, store.Item{Table: "sessions", Key: "h", Value: []byte(`{}`)})).To(Succeed())
			Expect(s.Delete(ctx, "sessions", "h")).To(Succeed())
			Expect(s.Delete(ctx, "sessions", "h")).To(Succeed())
		})
	})
})
