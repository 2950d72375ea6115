// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/geoelevate/geoelevate/pkg/errutil"
)

var tracer = otel.Tracer("geoelevate/auth")

// TokenValidator checks a session token and returns the player ID it carries.
type TokenValidator interface {
	Validate(token string, now time.Time) (int64, error)
}

// GateOption configures a Gate during construction.
type GateOption func(*Gate)

// WithGateClock overrides the time source used for expiry checks.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// Gate resolves bearer tokens to players for protected operations.
type Gate struct {
	tokens  TokenValidator
	players PlayerRepository
	now     func() time.Time
}

// NewGate creates a Gate.
func NewGate(tokens TokenValidator, players PlayerRepository, opts ...GateOption) (*Gate, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_GATE").Errorf("token validator is required")
	}
	if players == nil {
		return nil, oops.Code("AUTH_INVALID_GATE").Errorf("players repository is required")
	}
	g := &Gate{tokens: tokens, players: players, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Resolve validates token and loads the current player record. It fails
// with errutil.ErrUnauthenticated for a missing, malformed, forged or expired
// token or a subject that no longer exists, and with
// errutil.ErrAccountInactive when the account has been deactivated.
func (g *Gate) Resolve(ctx context.Context, token string) (player *Player, err error) {
	ctx, span := tracer.Start(ctx, "auth.resolve")
	defer endSpan(span, &err)

	if token == "" {
		return nil, oops.Code("AUTH_TOKEN_MISSING").
			Wrap(errutil.Public(errutil.ErrUnauthenticated, "not authenticated"))
	}

	playerID, err := g.tokens.Validate(token, g.now())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("player.id", playerID))

	player, err = g.players.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_SUBJECT_UNKNOWN").
				With("player_id", playerID).
				Wrap(errutil.Public(errutil.ErrUnauthenticated, "could not validate credentials"))
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "get player by id").
			With("player_id", playerID).
			Wrap(err)
	}

	if !player.Active {
		return nil, oops.Code("AUTH_ACCOUNT_INACTIVE").
			With("player_id", playerID).
			Wrap(errutil.Public(errutil.ErrAccountInactive, "inactive user"))
	}

	return player, nil
}
