// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package store provides the PostgreSQL connection pool, transactions and
// schema migrations shared by the repositories.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Pool is the subset of *pgxpool.Pool used by repositories. It is satisfied
// by pgxmock.PgxPoolIface in unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ConnectOptions controls startup retries.
type ConnectOptions struct {
	// Attempts is the maximum number of ping retries after the first.
	Attempts uint64
	// BaseDelay is the first backoff interval; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration
	Logger   *slog.Logger
}

// DefaultConnectOptions retries for roughly half a minute.
var DefaultConnectOptions = ConnectOptions{
	Attempts:  6,
	BaseDelay: 250 * time.Millisecond,
	MaxDelay:  8 * time.Second,
}

// Connect opens a pgx pool and pings it with exponential backoff so the API
// can start alongside a database that is still booting.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultConnectOptions.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultConnectOptions.MaxDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(opts.Attempts,
		retry.WithCappedDuration(opts.MaxDelay, retry.NewExponential(opts.BaseDelay)))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", pingErr.Error())
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}

	return pool, nil
}

// InTx runs fn in a transaction, committing on nil and rolling back otherwise.
func InTx(ctx context.Context, pool Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
