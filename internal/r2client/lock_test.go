package r2client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(c *Client, now *time.Time) *PublishLock {
	l := NewPublishLock(c, "snapshots/catalog.lock", time.Minute)
	l.now = func() time.Time { return *now }
	return l
}

func TestPublishLock_Exclusive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewWithAPI(NewMemoryBucket(), "weamind")
	now := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

	first := newTestLock(c, &now)
	second := newTestLock(c, &now)
	assert.NotEqual(t, first.Owner(), second.Owner())

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Releasing someone else's lock is a no-op.
	require.NoError(t, second.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPublishLock_TakesOverExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewWithAPI(NewMemoryBucket(), "weamind")
	now := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

	stale := newTestLock(c, &now)
	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	fresh := newTestLock(c, &now)
	ok, err = fresh.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// The stale owner no longer holds it and must not delete it.
	require.NoError(t, stale.Release(ctx))
	other := newTestLock(c, &now)
	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublishLock_ReplacesGarbage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewWithAPI(NewMemoryBucket(), "weamind")
	now := time.Now()

	_, err := c.Put(ctx, "snapshots/catalog.lock", strings.NewReader("not json"))
	require.NoError(t, err)

	ok, err := newTestLock(c, &now).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
