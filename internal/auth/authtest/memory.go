// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package authtest provides test helpers for the auth package.
package authtest

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// MemoryPlayers is an in-memory auth.PlayerRepository with the same
// uniqueness rules as the PostgreSQL schema.
type MemoryPlayers struct {
	mu      sync.Mutex
	nextID  int64
	players map[int64]*auth.Player
}

// NewMemoryPlayers creates an empty repository.
func NewMemoryPlayers() *MemoryPlayers {
	return &MemoryPlayers{players: make(map[int64]*auth.Player)}
}

// Create stores player and sets its ID.
func (m *MemoryPlayers) Create(_ context.Context, player *auth.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.Username == player.Username || strings.EqualFold(p.Email, player.Email) {
			return oops.Code("PLAYER_CONFLICT").
				Wrap(errutil.Public(errutil.ErrConflict, "username or email already registered"))
		}
	}
	m.nextID++
	player.ID = m.nextID
	stored := *player
	m.players[player.ID] = &stored
	return nil
}

// GetByID retrieves a copy of the player with id.
func (m *MemoryPlayers) GetByID(_ context.Context, id int64) (*auth.Player, error) {
	return m.find(func(p *auth.Player) bool { return p.ID == id })
}

// GetByUsername retrieves a copy of the player with username.
func (m *MemoryPlayers) GetByUsername(_ context.Context, username string) (*auth.Player, error) {
	return m.find(func(p *auth.Player) bool { return p.Username == username })
}

// GetByEmail retrieves a copy of the player with email, ignoring case.
func (m *MemoryPlayers) GetByEmail(_ context.Context, email string) (*auth.Player, error) {
	return m.find(func(p *auth.Player) bool { return strings.EqualFold(p.Email, email) })
}

// SetActive changes the active flag of the player with id.
func (m *MemoryPlayers) SetActive(id int64, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[id]; ok {
		p.Active = active
	}
}

// Username returns the username for id, or "" if unknown.
func (m *MemoryPlayers) Username(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[id]; ok {
		return p.Username
	}
	return ""
}

func (m *MemoryPlayers) find(match func(*auth.Player) bool) (*auth.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if match(p) {
			found := *p
			return &found, nil
		}
	}
	return nil, oops.Code("PLAYER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

var _ auth.PlayerRepository = (*MemoryPlayers)(nil)
