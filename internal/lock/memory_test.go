package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewMemoryLock()

	ok, err := l.Lock(ctx, "resource:R1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Lock(ctx, "resource:R1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second lock on the same key must fail")

	ok, err = l.Lock(ctx, "resource:R2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, l.Unlock(ctx, "resource:R1"))

	ok, err = l.Lock(ctx, "resource:R1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLock_Expires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLock()
	l.nowFn = func() time.Time { return now }

	ok, _ := l.Lock(ctx, "k", 10*time.Second)
	require.True(t, ok)

	now = now.Add(11 * time.Second)

	ok, err := l.Lock(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is free again")
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()

	a, err := NewRedisLock(addr)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisLock(addr)
	require.NoError(t, err)
	defer b.Close()

	key := "test:" + t.Name() + ":" + time.Now().Format(time.RFC3339Nano)

	ok, err := a.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Unlock(ctx, key), "releasing a key held elsewhere is a no-op")

	ok, err = b.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock must survive a foreign unlock")

	require.NoError(t, a.Unlock(ctx, key))

	ok, err = b.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx, key))
}
