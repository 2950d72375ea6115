// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package throttle_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoelevate/geoelevate/internal/throttle"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

func newThrottle(t *testing.T, maxFailures int, window time.Duration) (*throttle.Throttle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	th, err := throttle.New(rdb, maxFailures, window)
	require.NoError(t, err)
	return th, mr
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := throttle.New(nil, 3, time.Minute)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "THROTTLE_INVALID")
}

func TestThrottle_BlocksAtLimit(t *testing.T) {
	ctx := context.Background()
	th, mr := newThrottle(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := th.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
		require.NoError(t, th.RecordFailure(ctx, "alice"))
	}

	allowed, err := th.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)

	n, err := mr.Get("geoelevate:login:failures:alice")
	require.NoError(t, err)
	assert.Equal(t, "3", n)
}

func TestThrottle_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	th, _ := newThrottle(t, 1, time.Minute)

	require.NoError(t, th.RecordFailure(ctx, "alice"))

	allowed, err := th.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestThrottle_KeyIgnoresCaseAndSpace(t *testing.T) {
	ctx := context.Background()
	th, _ := newThrottle(t, 1, time.Minute)

	require.NoError(t, th.RecordFailure(ctx, " Alice"))

	allowed, err := th.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestThrottle_WindowExpires(t *testing.T) {
	ctx := context.Background()
	th, mr := newThrottle(t, 2, time.Minute)

	require.NoError(t, th.RecordFailure(ctx, "alice"))
	mr.FastForward(50 * time.Second)
	require.NoError(t, th.RecordFailure(ctx, "alice"))

	// second failure restarted the window
	mr.FastForward(50 * time.Second)
	allowed, err := th.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(11 * time.Second)
	allowed, err = th.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestThrottle_Reset(t *testing.T) {
	ctx := context.Background()
	th, _ := newThrottle(t, 1, time.Minute)

	require.NoError(t, th.RecordFailure(ctx, "alice"))
	require.NoError(t, th.Reset(ctx, "alice"))

	allowed, err := th.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestThrottle_BackendDown(t *testing.T) {
	ctx := context.Background()
	th, mr := newThrottle(t, 1, time.Minute)
	mr.Close()

	_, err := th.Allow(ctx, "alice")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "THROTTLE_READ_FAILED")

	err = th.RecordFailure(ctx, "alice")
	errutil.AssertErrorCode(t, err, "THROTTLE_WRITE_FAILED")
}

func TestDial(t *testing.T) {
	ctx := context.Background()

	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb, err := throttle.Dial(ctx, "redis://"+mr.Addr()+"/0")
		require.NoError(t, err)
		assert.NoError(t, rdb.Close())
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := throttle.Dial(ctx, "http://nope")
		errutil.AssertErrorCode(t, err, "THROTTLE_CONFIG_INVALID")
	})
}
