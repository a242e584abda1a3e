package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	locker, err := NewRedisLocker(&Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { locker.Close() })
	return locker, mr
}

func TestAcquireAndRelease(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "token-refresh:google:user-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Held: a second acquire fails without error.
	ok, err = locker.Acquire(ctx, "token-refresh:google:user-1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "token-refresh:google:user-1"))

	ok, err = locker.Acquire(ctx, "token-refresh:google:user-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireIndependentKeys(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "token-refresh:google:user-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.Acquire(ctx, "token-refresh:google:user-2", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "locks on different users must not contend")
}

func TestLockExpires(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "token-refresh:google:user-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = locker.Acquire(ctx, "token-refresh:google:user-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock must be acquirable")
}

func TestReleaseUnheldLock(t *testing.T) {
	locker, _ := newTestLocker(t)
	assert.NoError(t, locker.Release(context.Background(), "never-acquired"))
}

func TestHealth(t *testing.T) {
	locker, mr := newTestLocker(t)
	assert.NoError(t, locker.Health())
	mr.Close()
	assert.Error(t, locker.Health())
}
