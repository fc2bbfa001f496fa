package moderator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

func TestCooldownsLoadsSnapshotOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.data[1] = 100
	c := &Cooldowns{Log: logger.Discard(), Store: store}

	ts, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), ts)

	_, ok, err = c.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 0, store.getCalls)
}

func TestCooldownsSetUpdatesMirror(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := &Cooldowns{Log: logger.Discard(), Store: store}

	_, _, err := c.Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, 1, 500))

	ts, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(500), ts)
	assert.Equal(t, int64(500), store.data[1])
}

func TestCooldownsFailedSetKeepsMirror(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.data[1] = 100
	c := &Cooldowns{Log: logger.Discard(), Store: store}

	_, _, err := c.Get(ctx, 1)
	require.NoError(t, err)

	store.setErr = errBoom
	require.ErrorIs(t, c.Set(ctx, 1, 900), errBoom)

	ts, _, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts)
}

func TestCooldownsFallsBackToPointLookup(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.data[1] = 100
	store.listErr = errBoom
	c := &Cooldowns{Log: logger.Discard(), Store: store}

	ts, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), ts)
	assert.Equal(t, 1, store.getCalls)

	_, err = c.All(ctx)
	require.ErrorIs(t, err, errBoom)

	// the snapshot is retried once the store recovers
	store.listErr = nil
	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 100}, all)
}

func TestCooldownsAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.data[1] = 100
	c := &Cooldowns{Log: logger.Discard(), Store: store}

	all, err := c.All(ctx)
	require.NoError(t, err)
	all[1] = 0

	ts, _, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts)
}

func TestCooldownsBacksOffSnapshotRetries(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := newMemStore()
	store.data[1] = 100
	store.listErr = errBoom
	c := &Cooldowns{Log: logger.Discard(), Store: store, RetryAfter: time.Minute, Now: clk.Now}

	for range 3 {
		ts, ok, err := c.Get(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(100), ts)
	}
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 3, store.getCalls)

	store.listErr = nil
	clk.Sleep(59 * time.Second)
	_, _, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 4, store.getCalls)

	clk.Sleep(time.Second)
	_, _, err = c.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls)
	assert.Equal(t, 4, store.getCalls)
}
