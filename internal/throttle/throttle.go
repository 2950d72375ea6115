// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package throttle counts failed logins in Redis.
package throttle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/auth"
)

// Defaults.
const (
	// DefaultMaxFailures is the number of failures that blocks further attempts.
	DefaultMaxFailures = 7
	// DefaultWindow is how long failures are remembered after the last one.
	DefaultWindow = 15 * time.Minute
)

const keyPrefix = "geoelevate:login:failures:"

// Throttle implements auth.LoginThrottle. The failure count for a key lives
// until Window passes without another failure.
type Throttle struct {
	rdb         redis.UniversalClient
	maxFailures int64
	window      time.Duration
}

// New creates a Throttle over rdb. Non-positive limits fall back to defaults.
func New(rdb redis.UniversalClient, maxFailures int, window time.Duration) (*Throttle, error) {
	if rdb == nil {
		return nil, oops.Code("THROTTLE_INVALID").Errorf("redis client is required")
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Throttle{rdb: rdb, maxFailures: int64(maxFailures), window: window}, nil
}

// Dial parses a redis:// URL and returns a connected client.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("THROTTLE_CONFIG_INVALID").Wrap(err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, oops.Code("THROTTLE_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return rdb, nil
}

func key(username string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(username))
}

// Allow reports whether username is below the failure limit.
func (t *Throttle) Allow(ctx context.Context, username string) (bool, error) {
	n, err := t.failures(ctx, username)
	if err != nil {
		return false, err
	}
	return n < t.maxFailures, nil
}

// RecordFailure increments the count for username and restarts its window.
func (t *Throttle) RecordFailure(ctx context.Context, username string) error {
	k := key(username)
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, t.window)
		return nil
	})
	if err != nil {
		return oops.Code("THROTTLE_WRITE_FAILED").Wrap(err)
	}
	return nil
}

// Reset clears the count for username.
func (t *Throttle) Reset(ctx context.Context, username string) error {
	if err := t.rdb.Del(ctx, key(username)).Err(); err != nil {
		return oops.Code("THROTTLE_WRITE_FAILED").Wrap(err)
	}
	return nil
}

func (t *Throttle) failures(ctx context.Context, username string) (int64, error) {
	n, err := t.rdb.Get(ctx, key(username)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.Code("THROTTLE_READ_FAILED").Wrap(err)
	}
	return n, nil
}

var _ auth.LoginThrottle = (*Throttle)(nil)
