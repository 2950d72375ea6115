// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/internal/store"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

const playerColumns = `id, username, email, hashed_password, is_active, created_at`

// PlayerRepository implements auth.PlayerRepository using PostgreSQL.
type PlayerRepository struct {
	pool store.Pool
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(pool store.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// Create stores a new player and sets player.ID.
func (r *PlayerRepository) Create(ctx context.Context, player *auth.Player) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, hashed_password, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		player.Username,
		player.Email,
		player.PasswordHash,
		player.Active,
		player.CreatedAt,
	).Scan(&player.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("PLAYER_CONFLICT").
				With("username", player.Username).
				With("constraint", pgErr.ConstraintName).
				Wrap(errutil.Public(errutil.ErrConflict, "username or email already registered"))
		}
		return oops.Code("PLAYER_CREATE_FAILED").
			With("operation", "insert player").
			With("username", player.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a player by ID.
func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM users WHERE id = $1`, id)
	return r.get(row, "id", id)
}

// GetByUsername retrieves a player by exact username.
func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM users WHERE username = $1`, username)
	return r.get(row, "username", username)
}

// GetByEmail retrieves a player by email (case-insensitive).
func (r *PlayerRepository) GetByEmail(ctx context.Context, email string) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return r.get(row, "email", email)
}

func (r *PlayerRepository) get(row pgx.Row, key string, value any) (*auth.Player, error) {
	var p auth.Player
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With(key, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_GET_FAILED").
			With("operation", "get player by "+key).
			With(key, value).
			Wrap(err)
	}
	return &p, nil
}

// Compile-time interface check.
var _ auth.PlayerRepository = (*PlayerRepository)(nil)
