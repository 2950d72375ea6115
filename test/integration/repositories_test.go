// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

//go:build integration

package integration

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/geoelevate/geoelevate/internal/auth"
	authpg "github.com/geoelevate/geoelevate/internal/auth/postgres"
	"github.com/geoelevate/geoelevate/internal/scores"
	scorespg "github.com/geoelevate/geoelevate/internal/scores/postgres"
	"github.com/geoelevate/geoelevate/internal/store"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func createPlayer(ctx context.Context, repo *authpg.PlayerRepository, username string) *auth.Player {
	player, err := auth.NewPlayer(username, username+"@example.com", "$argon2id$placeholder", base)
	Expect(err).NotTo(HaveOccurred())
	Expect(repo.Create(ctx, player)).To(Succeed())
	return player
}

var _ = Describe("Migrator", func() {
	It("reports every migration as applied", func() {
		migrator, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Dirty).To(BeFalse())
		Expect(status.Version).To(BeEquivalentTo(3))
		Expect(status.Name).To(Equal("leaderboard_index"))
		Expect(status.Pending).To(BeEmpty())
	})

	It("is a no-op when already up to date", func() {
		migrator, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		Expect(migrator.Up()).To(Succeed())
	})
})

var _ = Describe("PlayerRepository", func() {
	var (
		ctx     context.Context
		players *authpg.PlayerRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)
		players = authpg.NewPlayerRepository(env.pool)
	})

	It("assigns an id and round-trips every field", func() {
		p := createPlayer(ctx, players, "alice")
		Expect(p.ID).To(BeNumerically(">", 0))

		got, err := players.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Username).To(Equal("alice"))
		Expect(got.Email).To(Equal("alice@example.com"))
		Expect(got.Active).To(BeTrue())
		Expect(got.CreatedAt).To(BeTemporally("==", base))
	})

	It("rejects a duplicate username", func() {
		createPlayer(ctx, players, "alice")
		dup, err := auth.NewPlayer("alice", "other@example.com", "$argon2id$placeholder", base)
		Expect(err).NotTo(HaveOccurred())

		err = players.Create(ctx, dup)
		Expect(errors.Is(err, errutil.ErrConflict)).To(BeTrue())
	})

	It("rejects an email differing only in case", func() {
		createPlayer(ctx, players, "alice")
		dup := &auth.Player{
			Username:     "alice2",
			Email:        "ALICE@example.com",
			PasswordHash: "$argon2id$placeholder",
			Active:       true,
			CreatedAt:    base,
		}

		err := players.Create(ctx, dup)
		Expect(errors.Is(err, errutil.ErrConflict)).To(BeTrue())
	})

	It("matches usernames exactly and emails case-insensitively", func() {
		createPlayer(ctx, players, "alice")

		_, err := players.GetByUsername(ctx, "Alice")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

		got, err := players.GetByEmail(ctx, "Alice@Example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Username).To(Equal("alice"))
	})
})

var _ = Describe("ScoreRepository", func() {
	var (
		ctx        context.Context
		players    *authpg.PlayerRepository
		repo       *scorespg.ScoreRepository
		alice, bob *auth.Player
	)

	record := func(p *auth.Player, mode scores.GameMode, score int, offset time.Duration) *scores.Record {
		return &scores.Record{
			PlayerID:          p.ID,
			GameMode:          mode,
			Score:             score,
			QuestionsAnswered: 10,
			CreatedAt:         base.Add(offset),
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)
		players = authpg.NewPlayerRepository(env.pool)
		repo = scorespg.NewScoreRepository(env.pool)
		alice = createPlayer(ctx, players, "alice")
		bob = createPlayer(ctx, players, "bob")
	})

	Describe("TopScores", func() {
		It("orders by score then earliest record", func() {
			for _, rec := range []*scores.Record{
				record(alice, scores.ModeCapitals, 60, 2*time.Second),
				record(bob, scores.ModeCapitals, 95, 0),
				record(alice, scores.ModeCapitals, 80, time.Second),
				record(bob, scores.ModeCapitals, 60, time.Second),
				record(bob, scores.ModeFlags, 100, 0),
			} {
				Expect(repo.Create(ctx, rec)).To(Succeed())
			}

			top, err := repo.TopScores(ctx, scores.ModeCapitals, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(top).To(HaveLen(4))

			names := make([]string, len(top))
			values := make([]int, len(top))
			for i, r := range top {
				names[i] = r.Username
				values[i] = r.Score
			}
			Expect(values).To(Equal([]int{95, 80, 60, 60}))
			Expect(names).To(Equal([]string{"bob", "alice", "bob", "alice"}))
		})

		It("honours the limit", func() {
			for i := range 5 {
				Expect(repo.Create(ctx, record(alice, scores.ModeSpeed, i*10, 0))).To(Succeed())
			}
			top, err := repo.TopScores(ctx, scores.ModeSpeed, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(top).To(HaveLen(2))
			Expect(top[0].Score).To(Equal(40))
		})
	})

	Describe("ListForPlayer", func() {
		It("filters by mode and excludes other players", func() {
			Expect(repo.Create(ctx, record(alice, scores.ModeCapitals, 50, 0))).To(Succeed())
			Expect(repo.Create(ctx, record(alice, scores.ModeFlags, 70, 0))).To(Succeed())
			Expect(repo.Create(ctx, record(bob, scores.ModeFlags, 90, 0))).To(Succeed())

			all, err := repo.ListForPlayer(ctx, alice.ID, "", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].Score).To(Equal(70))

			flags, err := repo.ListForPlayer(ctx, alice.ID, scores.ModeFlags, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(flags).To(HaveLen(1))
			Expect(flags[0].PlayerID).To(Equal(alice.ID))
		})
	})

	Describe("CreateBatch", func() {
		It("writes nothing when one row violates a constraint", func() {
			batch := []*scores.Record{
				record(alice, scores.ModeCapitals, 10, 0),
				record(alice, scores.ModeCapitals, -1, 0),
			}
			Expect(repo.CreateBatch(ctx, batch)).NotTo(Succeed())
			Expect(batch[0].ID).To(BeZero())

			stored, err := repo.ListForPlayer(ctx, alice.ID, "", 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(BeEmpty())
		})

		It("assigns ids to every record", func() {
			batch := []*scores.Record{
				record(alice, scores.ModeCapitals, 10, 0),
				record(alice, scores.ModeSpeed, 20, 0),
			}
			Expect(repo.CreateBatch(ctx, batch)).To(Succeed())
			Expect(batch[0].ID).To(BeNumerically(">", 0))
			Expect(batch[1].ID).To(BeNumerically(">", batch[0].ID))
		})
	})

	Describe("Aggregate", func() {
		It("computes totals and per-mode bests", func() {
			Expect(repo.Create(ctx, record(alice, scores.ModeCapitals, 90, 0))).To(Succeed())
			Expect(repo.Create(ctx, record(alice, scores.ModeCapitals, 50, 0))).To(Succeed())
			Expect(repo.Create(ctx, record(alice, scores.ModeFlags, 80, 0))).To(Succeed())
			Expect(repo.Create(ctx, record(bob, scores.ModeSpeed, 99, 0))).To(Succeed())

			agg, err := repo.Aggregate(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(agg.TotalGames).To(BeEquivalentTo(3))
			Expect(agg.TotalScore).To(BeEquivalentTo(220))
			Expect(agg.Best[scores.ModeCapitals]).To(Equal(90))
			Expect(agg.Best[scores.ModeFlags]).To(Equal(80))
			Expect(agg.Best[scores.ModeSpeed]).To(Equal(0))
		})

		It("returns zeros for a player with no records", func() {
			agg, err := repo.Aggregate(ctx, bob.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(agg.TotalGames).To(BeZero())
			Expect(agg.TotalScore).To(BeZero())
		})
	})
})
