// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package scores

import (
	"context"
	"math"
	"time"

	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// GameMode is one of the fixed quiz categories.
type GameMode string

// Game modes.
const (
	ModeCapitals GameMode = "capitals"
	ModeFlags    GameMode = "flags"
	ModeSpeed    GameMode = "speed"
)

// GameModes lists every valid mode in display order.
var GameModes = []GameMode{ModeCapitals, ModeFlags, ModeSpeed}

// Valid reports whether m is one of GameModes.
func (m GameMode) Valid() bool {
	switch m {
	case ModeCapitals, ModeFlags, ModeSpeed:
		return true
	}
	return false
}

// String returns the wire name of the mode.
func (m GameMode) String() string { return string(m) }

// ParseGameMode validates s as a GameMode.
func ParseGameMode(s string) (GameMode, error) {
	m := GameMode(s)
	if !m.Valid() {
		return "", oops.Code("SCORE_INVALID_MODE").
			With("game_mode", s).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "invalid game mode"))
	}
	return m, nil
}

// Listing limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// CheckLimit rejects limits outside 1..MaxLimit.
func CheckLimit(limit int) error {
	if limit < 1 || limit > MaxLimit {
		return oops.Code("SCORE_INVALID_LIMIT").
			With("limit", limit).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "limit must be between 1 and 100"))
	}
	return nil
}

// MaxCount is the largest score or questions_answered the store can hold.
const MaxCount = math.MaxInt32

// Record is one completed game.
type Record struct {
	ID                int64
	PlayerID          int64
	GameMode          GameMode
	Score             int
	QuestionsAnswered int
	CreatedAt         time.Time
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	Rank              int
	Username          string
	Score             int
	QuestionsAnswered int
	CreatedAt         time.Time
}

// RankedRecord is a record joined to its owner's username, as returned by
// Repository.TopScores in rank order.
type RankedRecord struct {
	RecordID          int64
	Username          string
	Score             int
	QuestionsAnswered int
	CreatedAt         time.Time
}

// Aggregate holds a player's totals computed over a single snapshot.
type Aggregate struct {
	TotalGames int64
	Best       map[GameMode]int
	TotalScore int64
}

// UserStats is the public summary of one player's results.
type UserStats struct {
	Username     string
	TotalGames   int64
	BestCapitals int
	BestFlags    int
	BestSpeed    int
	TotalScore   int64
}

// Repository persists score records.
type Repository interface {
	// Create stores rec and sets its ID.
	Create(ctx context.Context, rec *Record) error

	// CreateBatch stores every record in one transaction. Either all records
	// are written or none are.
	CreateBatch(ctx context.Context, recs []*Record) error

	// ListForPlayer returns the player's records in rank order, optionally
	// restricted to mode (empty means all modes), at most limit rows.
	ListForPlayer(ctx context.Context, playerID int64, mode GameMode, limit int) ([]Record, error)

	// TopScores returns the highest records for mode joined to usernames, in
	// rank order, at most limit rows.
	TopScores(ctx context.Context, mode GameMode, limit int) ([]RankedRecord, error)

	// Aggregate computes the player's totals in one statement.
	Aggregate(ctx context.Context, playerID int64) (Aggregate, error)
}

// PlayerLookup finds players by username.
type PlayerLookup interface {
	GetByUsername(ctx context.Context, username string) (*auth.Player, error)
}

// Recorder observes accepted scores, typically for metrics.
type Recorder interface {
	ScoreSubmitted(mode GameMode)
	ScoresMigrated(count int)
}
