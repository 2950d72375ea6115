// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package scorestest provides test helpers for the scores package.
package scorestest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/geoelevate/geoelevate/internal/scores"
)

// UsernameFunc resolves a player ID to a username for TopScores.
type UsernameFunc func(playerID int64) string

// MemoryRepository is an in-memory scores.Repository that applies the same
// ordering as the PostgreSQL implementation.
type MemoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	records  []scores.Record
	username UsernameFunc

	// FailBatchAt makes CreateBatch fail when the batch reaches this
	// position (1-based). Zero disables the failure.
	FailBatchAt int
}

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected failure")

// NewMemoryRepository creates an empty repository. username may be nil.
func NewMemoryRepository(username UsernameFunc) *MemoryRepository {
	if username == nil {
		username = func(int64) string { return "" }
	}
	return &MemoryRepository{username: username}
}

// Create stores rec and sets its ID.
func (r *MemoryRepository) Create(_ context.Context, rec *scores.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	r.records = append(r.records, *rec)
	return nil
}

// CreateBatch stores all records or none.
func (r *MemoryRepository) CreateBatch(_ context.Context, recs []*scores.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make([]scores.Record, 0, len(recs))
	next := r.nextID
	for i, rec := range recs {
		if r.FailBatchAt > 0 && i+1 == r.FailBatchAt {
			return ErrInjected
		}
		next++
		rec.ID = next
		staged = append(staged, *rec)
	}
	r.nextID = next
	r.records = append(r.records, staged...)
	return nil
}

// ListForPlayer returns the player's records in rank order.
func (r *MemoryRepository) ListForPlayer(_ context.Context, playerID int64, mode scores.GameMode, limit int) ([]scores.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []scores.Record
	for _, rec := range r.records {
		if rec.PlayerID == playerID && (mode == "" || rec.GameMode == mode) {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TopScores returns the best records for mode in rank order.
func (r *MemoryRepository) TopScores(_ context.Context, mode scores.GameMode, limit int) ([]scores.RankedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []scores.Record
	for _, rec := range r.records {
		if rec.GameMode == mode {
			matched = append(matched, rec)
		}
	}
	sortRecords(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]scores.RankedRecord, len(matched))
	for i, rec := range matched {
		out[i] = scores.RankedRecord{
			RecordID:          rec.ID,
			Username:          r.username(rec.PlayerID),
			Score:             rec.Score,
			QuestionsAnswered: rec.QuestionsAnswered,
			CreatedAt:         rec.CreatedAt,
		}
	}
	return out, nil
}

// Aggregate computes the player's totals.
func (r *MemoryRepository) Aggregate(_ context.Context, playerID int64) (scores.Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg := scores.Aggregate{Best: make(map[scores.GameMode]int, len(scores.GameModes))}
	for _, rec := range r.records {
		if rec.PlayerID != playerID {
			continue
		}
		agg.TotalGames++
		agg.TotalScore += int64(rec.Score)
		if rec.Score > agg.Best[rec.GameMode] {
			agg.Best[rec.GameMode] = rec.Score
		}
	}
	return agg, nil
}

// Records returns a copy of everything stored, in insertion order.
func (r *MemoryRepository) Records() []scores.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scores.Record(nil), r.records...)
}

func sortRecords(recs []scores.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

var _ scores.Repository = (*MemoryRepository)(nil)
