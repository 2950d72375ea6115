// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package scores

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

var tracer = otel.Tracer("geoelevate/scores")

// ServiceOption configures a Service or Reconciler during construction.
type ServiceOption func(*options)

type options struct {
	now      func() time.Time
	recorder Recorder
}

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRecorder sets the observer for accepted scores.
func WithRecorder(recorder Recorder) ServiceOption {
	return func(o *options) {
		o.recorder = recorder
	}
}

func buildOptions(opts []ServiceOption) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Service submits scores and answers ranking and statistics queries.
type Service struct {
	repo    Repository
	players PlayerLookup
	options
}

// NewService creates a new Service.
func NewService(repo Repository, players PlayerLookup, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("SCORE_INVALID_SERVICE").Errorf("score repository is required")
	}
	if players == nil {
		return nil, oops.Code("SCORE_INVALID_SERVICE").Errorf("player lookup is required")
	}
	return &Service{repo: repo, players: players, options: buildOptions(opts)}, nil
}

// Submit validates and stores one game result for playerID, stamped with
// the current time.
func (s *Service) Submit(ctx context.Context, playerID int64, mode string, score, questionsAnswered int) (rec *Record, err error) {
	ctx, span := tracer.Start(ctx, "scores.submit",
		trace.WithAttributes(
			attribute.Int64("player.id", playerID),
			attribute.String("score.game_mode", mode),
		),
	)
	defer endSpan(span, &err)

	gameMode, err := ParseGameMode(mode)
	if err != nil {
		return nil, err
	}
	if err := checkCounts(score, questionsAnswered); err != nil {
		return nil, err
	}

	rec = &Record{
		PlayerID:          playerID,
		GameMode:          gameMode,
		Score:             score,
		QuestionsAnswered: questionsAnswered,
		CreatedAt:         s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, oops.Code("SCORE_SUBMIT_FAILED").
			With("player_id", playerID).
			With("game_mode", mode).
			Wrap(err)
	}

	if s.recorder != nil {
		s.recorder.ScoreSubmitted(gameMode)
	}
	return rec, nil
}

// ListForUser returns the player's own records in rank order, optionally
// filtered by mode. An empty mode lists every mode.
func (s *Service) ListForUser(ctx context.Context, playerID int64, mode string, limit int) (recs []Record, err error) {
	ctx, span := tracer.Start(ctx, "scores.list_for_user",
		trace.WithAttributes(attribute.Int64("player.id", playerID)),
	)
	defer endSpan(span, &err)

	var gameMode GameMode
	if mode != "" {
		if gameMode, err = ParseGameMode(mode); err != nil {
			return nil, err
		}
	}
	if err := CheckLimit(limit); err != nil {
		return nil, err
	}

	recs, err = s.repo.ListForPlayer(ctx, playerID, gameMode, limit)
	if err != nil {
		return nil, oops.Code("SCORE_LIST_FAILED").
			With("player_id", playerID).
			Wrap(err)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Leaderboard returns up to limit entries for mode ranked 1..k.
func (s *Service) Leaderboard(ctx context.Context, mode string, limit int) (entries []LeaderboardEntry, err error) {
	ctx, span := tracer.Start(ctx, "scores.leaderboard",
		trace.WithAttributes(attribute.String("score.game_mode", mode)),
	)
	defer endSpan(span, &err)

	gameMode, err := ParseGameMode(mode)
	if err != nil {
		return nil, err
	}
	if err := CheckLimit(limit); err != nil {
		return nil, err
	}

	rows, err := s.repo.TopScores(ctx, gameMode, limit)
	if err != nil {
		return nil, oops.Code("SCORE_LEADERBOARD_FAILED").
			With("game_mode", mode).
			Wrap(err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	entries = make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = LeaderboardEntry{
			Rank:              i + 1,
			Username:          row.Username,
			Score:             row.Score,
			QuestionsAnswered: row.QuestionsAnswered,
			CreatedAt:         row.CreatedAt,
		}
	}
	return entries, nil
}

// StatsFor summarizes the results of the player named username.
func (s *Service) StatsFor(ctx context.Context, username string) (stats *UserStats, err error) {
	ctx, span := tracer.Start(ctx, "scores.stats_for")
	defer endSpan(span, &err)

	player, err := s.players.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("SCORE_STATS_USER_NOT_FOUND").
				With("username", username).
				Wrap(errutil.Public(errutil.ErrNotFound, "User not found"))
		}
		return nil, oops.Code("SCORE_STATS_FAILED").
			With("operation", "get player by username").
			Wrap(err)
	}
	span.SetAttributes(attribute.Int64("player.id", player.ID))

	agg, err := s.repo.Aggregate(ctx, player.ID)
	if err != nil {
		return nil, oops.Code("SCORE_STATS_FAILED").
			With("operation", "aggregate scores").
			With("player_id", player.ID).
			Wrap(err)
	}

	return &UserStats{
		Username:     player.Username,
		TotalGames:   agg.TotalGames,
		BestCapitals: agg.Best[ModeCapitals],
		BestFlags:    agg.Best[ModeFlags],
		BestSpeed:    agg.Best[ModeSpeed],
		TotalScore:   agg.TotalScore,
	}, nil
}

func checkCounts(score, questionsAnswered int) error {
	if score < 0 {
		return oops.Code("SCORE_INVALID_VALUE").
			With("score", score).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "score must be zero or greater"))
	}
	if score > MaxCount {
		return oops.Code("SCORE_INVALID_VALUE").
			With("score", score).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "score is too large"))
	}
	if questionsAnswered < 0 {
		return oops.Code("SCORE_INVALID_VALUE").
			With("questions_answered", questionsAnswered).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "questions_answered must be zero or greater"))
	}
	if questionsAnswered > MaxCount {
		return oops.Code("SCORE_INVALID_VALUE").
			With("questions_answered", questionsAnswered).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "questions_answered is too large"))
	}
	return nil
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, errutil.Classify(*err).Code)
	}
	span.End()
}
