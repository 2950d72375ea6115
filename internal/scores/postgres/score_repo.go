// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package postgres implements the score repository on PostgreSQL.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/scores"
	"github.com/geoelevate/geoelevate/internal/store"
)

const scoreColumns = `id, user_id, game_mode, score, questions_answered, created_at`

// Rank order shared by every listing.
const rankOrder = `ORDER BY s.score DESC, s.created_at ASC, s.id ASC`

const insertScore = `
	INSERT INTO scores (user_id, game_mode, score, questions_answered, created_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
`

// ScoreRepository implements scores.Repository using PostgreSQL.
type ScoreRepository struct {
	pool store.Pool
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(pool store.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Create stores rec and sets rec.ID.
func (r *ScoreRepository) Create(ctx context.Context, rec *scores.Record) error {
	if err := insert(ctx, r.pool, rec); err != nil {
		return oops.Code("SCORE_CREATE_FAILED").
			With("operation", "insert score").
			With("player_id", rec.PlayerID).
			Wrap(err)
	}
	return nil
}

// CreateBatch stores recs in a single transaction.
func (r *ScoreRepository) CreateBatch(ctx context.Context, recs []*scores.Record) error {
	if len(recs) == 0 {
		return nil
	}
	err := store.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		for i, rec := range recs {
			if err := insert(ctx, tx, rec); err != nil {
				return oops.Code("SCORE_CREATE_FAILED").
					With("operation", "insert score batch").
					With("index", i).
					Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		for _, rec := range recs {
			rec.ID = 0
		}
		return err
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insert(ctx context.Context, q rowQuerier, rec *scores.Record) error {
	return q.QueryRow(ctx, insertScore,
		rec.PlayerID,
		string(rec.GameMode),
		rec.Score,
		rec.QuestionsAnswered,
		rec.CreatedAt,
	).Scan(&rec.ID)
}

// ListForPlayer returns the player's records in rank order.
func (r *ScoreRepository) ListForPlayer(ctx context.Context, playerID int64, mode scores.GameMode, limit int) ([]scores.Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if mode == "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+scoreColumns+` FROM scores s
			WHERE s.user_id = $1
			`+rankOrder+`
			LIMIT $2
		`, playerID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+scoreColumns+` FROM scores s
			WHERE s.user_id = $1 AND s.game_mode = $2
			`+rankOrder+`
			LIMIT $3
		`, playerID, string(mode), limit)
	}
	if err != nil {
		return nil, oops.Code("SCORE_QUERY_FAILED").
			With("operation", "list scores for player").
			With("player_id", playerID).
			Wrap(err)
	}
	defer rows.Close()

	var out []scores.Record
	for rows.Next() {
		var (
			rec  scores.Record
			mode string
		)
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &mode, &rec.Score, &rec.QuestionsAnswered, &rec.CreatedAt); err != nil {
			return nil, oops.Code("SCORE_SCAN_FAILED").
				With("operation", "scan score").
				Wrap(err)
		}
		rec.GameMode = scores.GameMode(mode)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SCORE_QUERY_FAILED").
			With("operation", "iterate scores").
			With("player_id", playerID).
			Wrap(err)
	}
	return out, nil
}

// TopScores returns the best records for mode joined to usernames.
func (r *ScoreRepository) TopScores(ctx context.Context, mode scores.GameMode, limit int) ([]scores.RankedRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, u.username, s.score, s.questions_answered, s.created_at
		FROM scores s
		JOIN users u ON u.id = s.user_id
		WHERE s.game_mode = $1
		`+rankOrder+`
		LIMIT $2
	`, string(mode), limit)
	if err != nil {
		return nil, oops.Code("SCORE_QUERY_FAILED").
			With("operation", "top scores").
			With("game_mode", string(mode)).
			Wrap(err)
	}
	defer rows.Close()

	var out []scores.RankedRecord
	for rows.Next() {
		var rr scores.RankedRecord
		if err := rows.Scan(&rr.RecordID, &rr.Username, &rr.Score, &rr.QuestionsAnswered, &rr.CreatedAt); err != nil {
			return nil, oops.Code("SCORE_SCAN_FAILED").
				With("operation", "scan ranked score").
				Wrap(err)
		}
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SCORE_QUERY_FAILED").
			With("operation", "iterate top scores").
			With("game_mode", string(mode)).
			Wrap(err)
	}
	return out, nil
}

// Aggregate computes the player's totals in one statement so every figure
// comes from the same snapshot.
func (r *ScoreRepository) Aggregate(ctx context.Context, playerID int64) (scores.Aggregate, error) {
	var (
		agg                  scores.Aggregate
		capitals, flags, spd int
	)
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(MAX(score) FILTER (WHERE game_mode = 'capitals'), 0),
			COALESCE(MAX(score) FILTER (WHERE game_mode = 'flags'), 0),
			COALESCE(MAX(score) FILTER (WHERE game_mode = 'speed'), 0),
			COALESCE(SUM(score), 0)
		FROM scores
		WHERE user_id = $1
	`, playerID).Scan(&agg.TotalGames, &capitals, &flags, &spd, &agg.TotalScore)
	if err != nil {
		return scores.Aggregate{}, oops.Code("SCORE_QUERY_FAILED").
			With("operation", "aggregate scores").
			With("player_id", playerID).
			Wrap(err)
	}
	agg.Best = map[scores.GameMode]int{
		scores.ModeCapitals: capitals,
		scores.ModeFlags:    flags,
		scores.ModeSpeed:    spd,
	}
	return agg, nil
}

// Compile-time interface check.
var _ scores.Repository = (*ScoreRepository)(nil)
