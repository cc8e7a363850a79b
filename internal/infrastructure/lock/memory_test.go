package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_TryLock(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "r1:doordash", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, l.Held("r1:doordash"))

	_, ok, err = l.TryLock(ctx, "r1:doordash", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second caller must be rejected")

	_, ok, err = l.TryLock(ctx, "r1:ubereats", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	release()
	assert.False(t, l.Held("r1:doordash"))

	_, ok, err = l.TryLock(ctx, "r1:doordash", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLocker_ReleaseIsIdempotent(t *testing.T) {
	l := NewMemoryLocker()

	release, ok, err := l.TryLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	release()
	release()
	assert.False(t, l.Held("k"))
}

func TestMemoryLocker_ExpiredHolderDoesNotReleaseSuccessor(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	staleRelease, ok, err := l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, err = l.TryLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired holder is treated as released")

	staleRelease()
	assert.True(t, l.Held("k"))
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	l := NewMemoryLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := l.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestMemoryLocker_ConcurrentHolders(t *testing.T) {
	l := NewMemoryLocker()

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, ok, err := l.TryLock(context.Background(), "r1:doordash", time.Minute)
			if err != nil || !ok {
				return
			}
			n := active.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int32(1))
	assert.False(t, l.Held("r1:doordash"))
}
