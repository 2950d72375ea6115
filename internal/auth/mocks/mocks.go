// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/geoelevate/geoelevate/internal/auth"
)

// MockPlayerRepository is a mock of auth.PlayerRepository.
type MockPlayerRepository struct {
	mock.Mock
}

// NewMockPlayerRepository creates a mock that asserts its expectations on cleanup.
func NewMockPlayerRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPlayerRepository {
	m := &MockPlayerRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockPlayerRepository) Create(ctx context.Context, player *auth.Player) error {
	args := m.Called(ctx, player)
	return args.Error(0)
}

// GetByID provides a mock function.
func (m *MockPlayerRepository) GetByID(ctx context.Context, id int64) (*auth.Player, error) {
	args := m.Called(ctx, id)
	return playerArg(args, 0), args.Error(1)
}

// GetByUsername provides a mock function.
func (m *MockPlayerRepository) GetByUsername(ctx context.Context, username string) (*auth.Player, error) {
	args := m.Called(ctx, username)
	return playerArg(args, 0), args.Error(1)
}

// GetByEmail provides a mock function.
func (m *MockPlayerRepository) GetByEmail(ctx context.Context, email string) (*auth.Player, error) {
	args := m.Called(ctx, email)
	return playerArg(args, 0), args.Error(1)
}

func playerArg(args mock.Arguments, i int) *auth.Player {
	if p, ok := args.Get(i).(*auth.Player); ok {
		return p
	}
	return nil
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, digest string) bool {
	args := m.Called(password, digest)
	return args.Bool(0)
}

// MockLoginThrottle is a mock of auth.LoginThrottle.
type MockLoginThrottle struct {
	mock.Mock
}

// NewMockLoginThrottle creates a mock that asserts its expectations on cleanup.
func NewMockLoginThrottle(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockLoginThrottle {
	m := &MockLoginThrottle{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Allow provides a mock function.
func (m *MockLoginThrottle) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// RecordFailure provides a mock function.
func (m *MockLoginThrottle) RecordFailure(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Reset provides a mock function.
func (m *MockLoginThrottle) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
