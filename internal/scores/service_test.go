// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package scores_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/internal/auth/authtest"
	"github.com/geoelevate/geoelevate/internal/scores"
	"github.com/geoelevate/geoelevate/internal/scores/scorestest"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// steppingClock returns t0, t0+1s, t0+2s, ... on successive calls.
func steppingClock() func() time.Time {
	next := t0
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type countingRecorder struct {
	submitted map[scores.GameMode]int
	migrated  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{submitted: make(map[scores.GameMode]int)}
}

func (r *countingRecorder) ScoreSubmitted(mode scores.GameMode) { r.submitted[mode]++ }
func (r *countingRecorder) ScoresMigrated(count int)            { r.migrated += count }

// brokenRepo fails every operation.
type brokenRepo struct{ err error }

func (b brokenRepo) Create(context.Context, *scores.Record) error        { return b.err }
func (b brokenRepo) CreateBatch(context.Context, []*scores.Record) error { return b.err }
func (b brokenRepo) ListForPlayer(context.Context, int64, scores.GameMode, int) ([]scores.Record, error) {
	return nil, b.err
}

func (b brokenRepo) TopScores(context.Context, scores.GameMode, int) ([]scores.RankedRecord, error) {
	return nil, b.err
}

func (b brokenRepo) Aggregate(context.Context, int64) (scores.Aggregate, error) {
	return scores.Aggregate{}, b.err
}

type fixture struct {
	players  *authtest.MemoryPlayers
	repo     *scorestest.MemoryRepository
	recorder *countingRecorder
	svc      *scores.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	players := authtest.NewMemoryPlayers()
	f := &fixture{
		players:  players,
		repo:     scorestest.NewMemoryRepository(players.Username),
		recorder: newCountingRecorder(),
	}
	svc, err := scores.NewService(f.repo, players,
		scores.WithClock(steppingClock()),
		scores.WithRecorder(f.recorder),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) addPlayer(t *testing.T, username string) *auth.Player {
	t.Helper()
	p, err := auth.NewPlayer(username, username+"@example.com", "digest", t0)
	require.NoError(t, err)
	require.NoError(t, f.players.Create(context.Background(), p))
	return p
}

func TestNewService_NilDependencies(t *testing.T) {
	players := authtest.NewMemoryPlayers()
	repo := scorestest.NewMemoryRepository(nil)

	_, err := scores.NewService(nil, players)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score repository is required")
	errutil.AssertErrorCode(t, err, "SCORE_INVALID_SERVICE")

	_, err = scores.NewService(repo, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player lookup is required")
}

func TestParseGameMode(t *testing.T) {
	for _, mode := range []string{"capitals", "flags", "speed"} {
		got, err := scores.ParseGameMode(mode)
		require.NoError(t, err)
		assert.Equal(t, mode, got.String())
	}

	for _, mode := range []string{"", "Capitals", "trivia", " flags"} {
		_, err := scores.ParseGameMode(mode)
		require.Error(t, err, "mode %q", mode)
		errutil.AssertKind(t, err, errutil.ErrInvalidInput)
		errutil.AssertErrorCode(t, err, "SCORE_INVALID_MODE")
	}
}

func TestCheckLimit(t *testing.T) {
	assert.NoError(t, scores.CheckLimit(1))
	assert.NoError(t, scores.CheckLimit(scores.DefaultLimit))
	assert.NoError(t, scores.CheckLimit(scores.MaxLimit))

	for _, limit := range []int{-1, 0, scores.MaxLimit + 1} {
		err := scores.CheckLimit(limit)
		errutil.AssertKind(t, err, errutil.ErrInvalidInput)
		assert.Equal(t, "limit must be between 1 and 100", errutil.Classify(err).Message)
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores record stamped with current time", func(t *testing.T) {
		f := newFixture(t)
		alice := f.addPlayer(t, "alice")

		rec, err := f.svc.Submit(ctx, alice.ID, "capitals", 80, 10)
		require.NoError(t, err)

		assert.NotZero(t, rec.ID)
		assert.Equal(t, alice.ID, rec.PlayerID)
		assert.Equal(t, scores.ModeCapitals, rec.GameMode)
		assert.Equal(t, 80, rec.Score)
		assert.Equal(t, 10, rec.QuestionsAnswered)
		assert.Equal(t, t0, rec.CreatedAt)
		assert.Len(t, f.repo.Records(), 1)
		assert.Equal(t, 1, f.recorder.submitted[scores.ModeCapitals])
	})

	t.Run("zero values are accepted", func(t *testing.T) {
		f := newFixture(t)
		alice := f.addPlayer(t, "alice")

		rec, err := f.svc.Submit(ctx, alice.ID, "speed", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.Score)
	})

	rejects := []struct {
		name  string
		mode  string
		score int
		qa    int
		code  string
	}{
		{"unknown mode", "trivia", 50, 10, "SCORE_INVALID_MODE"},
		{"empty mode", "", 50, 10, "SCORE_INVALID_MODE"},
		{"negative score", "flags", -1, 10, "SCORE_INVALID_VALUE"},
		{"negative questions answered", "flags", 5, -3, "SCORE_INVALID_VALUE"},
		{"score above column range", "capitals", scores.MaxCount + 1, 10, "SCORE_INVALID_VALUE"},
		{"questions answered above column range", "capitals", 10, scores.MaxCount + 1, "SCORE_INVALID_VALUE"},
	}
	for _, tt := range rejects {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			f := newFixture(t)
			alice := f.addPlayer(t, "alice")

			rec, err := f.svc.Submit(ctx, alice.ID, tt.mode, tt.score, tt.qa)
			require.Error(t, err)
			assert.Nil(t, rec)
			errutil.AssertKind(t, err, errutil.ErrInvalidInput)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Empty(t, f.repo.Records())
			assert.Empty(t, f.recorder.submitted)
		})
	}

	t.Run("accepts counts at the column maximum", func(t *testing.T) {
		f := newFixture(t)
		alice := f.addPlayer(t, "alice")

		rec, err := f.svc.Submit(ctx, alice.ID, "speed", scores.MaxCount, scores.MaxCount)
		require.NoError(t, err)
		assert.Equal(t, scores.MaxCount, rec.Score)
	})

	t.Run("timestamp is stored at microsecond precision", func(t *testing.T) {
		players := authtest.NewMemoryPlayers()
		repo := scorestest.NewMemoryRepository(players.Username)
		svc, err := scores.NewService(repo, players,
			scores.WithClock(fixedClock(t0.Add(1234567891*time.Nanosecond))))
		require.NoError(t, err)

		rec, err := svc.Submit(ctx, 1, "flags", 10, 10)
		require.NoError(t, err)
		assert.Equal(t, t0.Add(1234567*time.Microsecond), rec.CreatedAt)
		assert.Equal(t, rec.CreatedAt, repo.Records()[0].CreatedAt)
	})

	t.Run("storage failure is internal", func(t *testing.T) {
		svc, err := scores.NewService(brokenRepo{err: errors.New("connection reset")}, authtest.NewMemoryPlayers())
		require.NoError(t, err)

		_, err = svc.Submit(ctx, 1, "flags", 10, 10)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SCORE_SUBMIT_FAILED")
		assert.Equal(t, errutil.CodeInternal, errutil.Classify(err).Code)
	})
}

func TestService_ListForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.addPlayer(t, "alice")
	bob := f.addPlayer(t, "bob")

	for _, s := range []struct {
		player *auth.Player
		mode   string
		score  int
	}{
		{alice, "capitals", 40},
		{alice, "flags", 90},
		{alice, "capitals", 70},
		{bob, "capitals", 100},
		{alice, "capitals", 70},
	} {
		_, err := f.svc.Submit(ctx, s.player.ID, s.mode, s.score, 10)
		require.NoError(t, err)
	}

	t.Run("all modes in rank order", func(t *testing.T) {
		recs, err := f.svc.ListForUser(ctx, alice.ID, "", scores.DefaultLimit)
		require.NoError(t, err)
		require.Len(t, recs, 4)

		got := make([]int, len(recs))
		for i, r := range recs {
			assert.Equal(t, alice.ID, r.PlayerID)
			got[i] = r.Score
		}
		assert.Equal(t, []int{90, 70, 70, 40}, got)
		// equal scores: earlier first
		assert.True(t, recs[1].CreatedAt.Before(recs[2].CreatedAt))
	})

	t.Run("filtered by mode", func(t *testing.T) {
		recs, err := f.svc.ListForUser(ctx, alice.ID, "capitals", scores.DefaultLimit)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		for _, r := range recs {
			assert.Equal(t, scores.ModeCapitals, r.GameMode)
		}
	})

	t.Run("honors limit", func(t *testing.T) {
		recs, err := f.svc.ListForUser(ctx, alice.ID, "", 2)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("player with no records", func(t *testing.T) {
		carol := f.addPlayer(t, "carol")
		recs, err := f.svc.ListForUser(ctx, carol.ID, "", scores.DefaultLimit)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := f.svc.ListForUser(ctx, alice.ID, "geology", scores.DefaultLimit)
		errutil.AssertKind(t, err, errutil.ErrInvalidInput)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := f.svc.ListForUser(ctx, alice.ID, "", 0)
		errutil.AssertErrorCode(t, err, "SCORE_INVALID_LIMIT")
	})
}

func TestService_Leaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.addPlayer(t, "alice")
	bob := f.addPlayer(t, "bob")
	carol := f.addPlayer(t, "carol")

	submit := func(p *auth.Player, mode string, score int) {
		_, err := f.svc.Submit(ctx, p.ID, mode, score, 10)
		require.NoError(t, err)
	}
	submit(alice, "flags", 60)
	submit(bob, "flags", 95)
	submit(carol, "flags", 60)
	submit(alice, "flags", 80)
	submit(bob, "capitals", 100)

	t.Run("ranks 1..k with non-increasing scores", func(t *testing.T) {
		entries, err := f.svc.Leaderboard(ctx, "flags", scores.DefaultLimit)
		require.NoError(t, err)
		require.Len(t, entries, 4)

		for i, e := range entries {
			assert.Equal(t, i+1, e.Rank)
			if i > 0 {
				assert.LessOrEqual(t, e.Score, entries[i-1].Score)
			}
		}
		assert.Equal(t, "bob", entries[0].Username)
		assert.Equal(t, 95, entries[0].Score)
		assert.Equal(t, "alice", entries[1].Username)
	})

	t.Run("ties go to the earlier record", func(t *testing.T) {
		entries, err := f.svc.Leaderboard(ctx, "flags", scores.DefaultLimit)
		require.NoError(t, err)
		assert.Equal(t, "alice", entries[2].Username)
		assert.Equal(t, "carol", entries[3].Username)
	})

	t.Run("player may appear more than once", func(t *testing.T) {
		entries, err := f.svc.Leaderboard(ctx, "flags", scores.DefaultLimit)
		require.NoError(t, err)
		count := 0
		for _, e := range entries {
			if e.Username == "alice" {
				count++
			}
		}
		assert.Equal(t, 2, count)
	})

	t.Run("limit truncates", func(t *testing.T) {
		entries, err := f.svc.Leaderboard(ctx, "flags", 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 2, entries[1].Rank)
	})

	t.Run("mode without records is empty", func(t *testing.T) {
		entries, err := f.svc.Leaderboard(ctx, "speed", scores.DefaultLimit)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := f.svc.Leaderboard(ctx, "everything", scores.DefaultLimit)
		errutil.AssertKind(t, err, errutil.ErrInvalidInput)
		assert.Equal(t, "invalid game mode", errutil.Classify(err).Message)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := f.svc.Leaderboard(ctx, "flags", scores.MaxLimit+1)
		errutil.AssertKind(t, err, errutil.ErrInvalidInput)
	})

	t.Run("storage failure is internal", func(t *testing.T) {
		svc, err := scores.NewService(brokenRepo{err: errors.New("boom")}, f.players)
		require.NoError(t, err)
		_, err = svc.Leaderboard(ctx, "flags", 10)
		errutil.AssertErrorCode(t, err, "SCORE_LEADERBOARD_FAILED")
		errutil.AssertErrorContext(t, err, "game_mode", "flags")
	})
}

func TestService_StatsFor(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates across modes", func(t *testing.T) {
		f := newFixture(t)
		alice := f.addPlayer(t, "alice")
		for _, s := range []struct {
			mode  string
			score int
		}{
			{"capitals", 50},
			{"flags", 80},
			{"capitals", 90},
		} {
			_, err := f.svc.Submit(ctx, alice.ID, s.mode, s.score, 10)
			require.NoError(t, err)
		}

		stats, err := f.svc.StatsFor(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, &scores.UserStats{
			Username:     "alice",
			TotalGames:   3,
			BestCapitals: 90,
			BestFlags:    80,
			BestSpeed:    0,
			TotalScore:   220,
		}, stats)
	})

	t.Run("player without records has zero stats", func(t *testing.T) {
		f := newFixture(t)
		f.addPlayer(t, "bob")

		stats, err := f.svc.StatsFor(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, &scores.UserStats{Username: "bob"}, stats)
	})

	t.Run("other players do not contribute", func(t *testing.T) {
		f := newFixture(t)
		alice := f.addPlayer(t, "alice")
		bob := f.addPlayer(t, "bob")
		_, err := f.svc.Submit(ctx, bob.ID, "speed", 70, 10)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, alice.ID, "speed", 30, 10)
		require.NoError(t, err)

		stats, err := f.svc.StatsFor(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalGames)
		assert.Equal(t, 30, stats.BestSpeed)
		assert.Equal(t, int64(30), stats.TotalScore)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.StatsFor(ctx, "nobody")
		require.Error(t, err)
		errutil.AssertKind(t, err, errutil.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SCORE_STATS_USER_NOT_FOUND")
		assert.Equal(t, "User not found", errutil.Classify(err).Message)
	})

	t.Run("username match is exact", func(t *testing.T) {
		f := newFixture(t)
		f.addPlayer(t, "alice")

		_, err := f.svc.StatsFor(ctx, "Alice")
		errutil.AssertKind(t, err, errutil.ErrNotFound)
	})

	t.Run("aggregate failure is internal", func(t *testing.T) {
		players := authtest.NewMemoryPlayers()
		p, err := auth.NewPlayer("dave", "dave@example.com", "digest", t0)
		require.NoError(t, err)
		require.NoError(t, players.Create(ctx, p))

		svc, err := scores.NewService(brokenRepo{err: errors.New("boom")}, players)
		require.NoError(t, err)

		_, err = svc.StatsFor(ctx, "dave")
		errutil.AssertErrorCode(t, err, "SCORE_STATS_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "aggregate scores")
		assert.Equal(t, errutil.CodeInternal, errutil.Classify(err).Code)
	})
}
