// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// Credential validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	MaxEmailLength    = 254
)

// usernameRegex matches letters, digits, underscore, hyphen and dot.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Player is a registered account. PasswordHash is the only credential
// material stored; the plaintext never leaves Register or Login.
type Player struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// NewPlayer validates the username and email and returns an active player.
// The ID is assigned by the repository on Create.
func NewPlayer(username, email, passwordHash string, createdAt time.Time) (*Player, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_PLAYER").Errorf("password hash cannot be empty")
	}
	return &Player{
		Username:     username,
		Email:        normalized,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    createdAt,
	}, nil
}

// ValidateUsername checks length and character set.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "username must be 3 to 50 characters"))
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Wrap(errutil.Public(errutil.ErrInvalidInput,
				"username may contain only letters, digits, underscores, hyphens and dots"))
	}
	return nil
}

// NormalizeEmail validates a single bare address and returns it trimmed.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > MaxEmailLength {
		return "", oops.Code("AUTH_INVALID_EMAIL").
			Wrap(errutil.Public(errutil.ErrInvalidInput, "a valid email address is required"))
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", oops.Code("AUTH_INVALID_EMAIL").
			Wrap(errutil.Public(errutil.ErrInvalidInput, "a valid email address is required"))
	}
	return email, nil
}

// ValidatePassword checks the minimum length of a new password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "password must be at least 6 characters"))
	}
	return nil
}

// PlayerRepository manages player persistence.
type PlayerRepository interface {
	// Create stores a new player and sets its ID. Returns an error wrapping
	// errutil.ErrConflict if the username or email is taken.
	Create(ctx context.Context, player *Player) error

	// GetByID retrieves a player by ID.
	// Returns ErrNotFound if no player has the given ID.
	GetByID(ctx context.Context, id int64) (*Player, error)

	// GetByUsername retrieves a player by exact username.
	// Returns ErrNotFound if no player has the given username.
	GetByUsername(ctx context.Context, username string) (*Player, error)

	// GetByEmail retrieves a player by email (case-insensitive).
	// Returns ErrNotFound if no player has the given email.
	GetByEmail(ctx context.Context, email string) (*Player, error)
}
