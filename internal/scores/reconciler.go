// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package scores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// Migration constants.
const (
	// MigratedQuestionsAnswered is stored for imported records, which carry
	// no question count.
	MigratedQuestionsAnswered = 10
	// MaxMigrationEntries bounds a single import.
	MaxMigrationEntries = 1000
)

// MigrationEntry is one client-held result awaiting import.
type MigrationEntry struct {
	Mode  string
	Score int
	Date  string
}

// MigrationResult reports how many records an import created.
type MigrationResult struct {
	Imported int
}

// Accepted timestamp layouts, tried in order. Layouts without a zone are
// read as UTC.
var migrationDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseMigrationDate parses an ISO-8601 timestamp. ok is false when no
// layout matches.
func ParseMigrationDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	for _, layout := range migrationDateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// Reconciler imports client-held score history into the store.
type Reconciler struct {
	repo Repository
	options
}

// NewReconciler creates a new Reconciler.
func NewReconciler(repo Repository, opts ...ServiceOption) (*Reconciler, error) {
	if repo == nil {
		return nil, oops.Code("SCORE_INVALID_SERVICE").Errorf("score repository is required")
	}
	return &Reconciler{repo: repo, options: buildOptions(opts)}, nil
}

// Migrate validates every entry, then writes all of them for playerID in a
// single transaction. One invalid entry rejects the whole batch before
// anything is written. Unparseable dates fall back to the current time.
// Entries are not deduplicated against existing records, so importing the
// same history twice stores it twice.
func (r *Reconciler) Migrate(ctx context.Context, playerID int64, entries []MigrationEntry) (result MigrationResult, err error) {
	ctx, span := tracer.Start(ctx, "scores.migrate",
		trace.WithAttributes(
			attribute.Int64("player.id", playerID),
			attribute.Int("migration.entries", len(entries)),
		),
	)
	defer endSpan(span, &err)

	if len(entries) > MaxMigrationEntries {
		return MigrationResult{}, oops.Code("SCORE_MIGRATION_TOO_LARGE").
			With("entries", len(entries)).
			Wrap(errutil.Public(errutil.ErrInvalidInput,
				fmt.Sprintf("at most %d scores can be migrated at once", MaxMigrationEntries)))
	}

	now := r.now().UTC()
	recs := make([]*Record, 0, len(entries))
	fallbacks := 0
	for i, entry := range entries {
		mode, err := ParseGameMode(entry.Mode)
		if err != nil {
			return MigrationResult{}, oops.Code("SCORE_MIGRATION_INVALID").
				With("index", i).
				With("game_mode", entry.Mode).
				Wrap(errutil.Public(errutil.ErrInvalidInput, fmt.Sprintf("scores[%d]: invalid game mode", i)))
		}
		if entry.Score < 0 {
			return MigrationResult{}, oops.Code("SCORE_MIGRATION_INVALID").
				With("index", i).
				With("score", entry.Score).
				Wrap(errutil.Public(errutil.ErrInvalidInput, fmt.Sprintf("scores[%d]: score must be zero or greater", i)))
		}
		if entry.Score > MaxCount {
			return MigrationResult{}, oops.Code("SCORE_MIGRATION_INVALID").
				With("index", i).
				With("score", entry.Score).
				Wrap(errutil.Public(errutil.ErrInvalidInput, fmt.Sprintf("scores[%d]: score is too large", i)))
		}

		createdAt, ok := ParseMigrationDate(entry.Date)
		if !ok {
			createdAt = now
			fallbacks++
		}

		recs = append(recs, &Record{
			PlayerID:          playerID,
			GameMode:          mode,
			Score:             entry.Score,
			QuestionsAnswered: MigratedQuestionsAnswered,
			CreatedAt:         createdAt.Truncate(time.Microsecond),
		})
	}
	span.SetAttributes(attribute.Int("migration.date_fallbacks", fallbacks))

	if len(recs) == 0 {
		return MigrationResult{}, nil
	}

	if err := r.repo.CreateBatch(ctx, recs); err != nil {
		return MigrationResult{}, oops.Code("SCORE_MIGRATION_FAILED").
			With("player_id", playerID).
			With("entries", len(recs)).
			Wrap(err)
	}

	if r.recorder != nil {
		r.recorder.ScoresMigrated(len(recs))
	}
	return MigrationResult{Imported: len(recs)}, nil
}
