package lock

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/dbsnap/internal/domain"
)

func TestRegistry_SecondAcquireFailsFast(t *testing.T) {
	ctx := context.Background()
	r := New("")

	g, err := r.TryAcquire(ctx, "db1")
	require.NoError(t, err)

	_, err = r.TryAcquire(ctx, "db1")
	require.ErrorIs(t, err, domain.ErrInstanceBusy)

	// other instances are independent
	other, err := r.TryAcquire(ctx, "db2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, g.Release(ctx))
	g2, err := r.TryAcquire(ctx, "db1")
	require.NoError(t, err)
	require.NoError(t, g2.Release(ctx))
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := New("")

	g, err := r.TryAcquire(ctx, "db1")
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx))

	g2, err := r.TryAcquire(ctx, "db1")
	require.NoError(t, err)

	// a stale guard must not free the new holder's lock
	require.NoError(t, g.Release(ctx))
	_, err = r.TryAcquire(ctx, "db1")
	require.ErrorIs(t, err, domain.ErrInstanceBusy)
	require.NoError(t, g2.Release(ctx))
}

func TestRegistry_ConcurrentAcquireHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	r := New("")

	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := r.TryAcquire(ctx, "db1"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestRegistry_FileLockAcrossRegistries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := New(dir)
	second := New(dir)

	g, err := first.TryAcquire(ctx, "db1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "db1.lock"))

	_, err = second.TryAcquire(ctx, "db1")
	require.ErrorIs(t, err, domain.ErrInstanceBusy)

	require.NoError(t, g.Release(ctx))

	g2, err := second.TryAcquire(ctx, "db1")
	require.NoError(t, err)
	require.NoError(t, g2.Release(ctx))
}

func TestRegistry_FileLockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	external := flock.New(filepath.Join(dir, "db1.lock"))
	locked, err := external.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = external.Unlock() }()

	r := New(dir)
	_, err = r.TryAcquire(ctx, "db1")
	require.ErrorIs(t, err, domain.ErrInstanceBusy)

	// the in-process slot is not leaked by the failed attempt
	require.NoError(t, external.Unlock())
	g, err := r.TryAcquire(ctx, "db1")
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx))
}
