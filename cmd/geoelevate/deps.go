// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/geoelevate/geoelevate/internal/observability"
	"github.com/geoelevate/geoelevate/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, logger *slog.Logger) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// RedisDialer connects the login throttle backend.
	// Default: throttle.Dial
	RedisDialer func(ctx context.Context, url string) (redis.UniversalClient, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory binds the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// Getenv looks up environment overrides.
	// Default: os.Getenv
	Getenv func(string) string

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer
}

// Database is the pool surface used by serve.
type Database interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
