package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDedupStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryDedupStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		claimed, err := store.MarkProcessed(ctx, "evt_first", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("redelivery is rejected", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt_dup", time.Minute)
		require.NoError(t, err)

		claimed, err := store.MarkProcessed(ctx, "evt_dup", time.Minute)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("expired claim can be retaken", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt_ttl", 10*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		claimed, err := store.MarkProcessed(ctx, "evt_ttl", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		const n = 20
		var winners int64
		var wg sync.WaitGroup

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := store.MarkProcessed(ctx, "evt_race", time.Minute)
				assert.NoError(t, err)
				if claimed {
					atomic.AddInt64(&winners, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), winners)
	})
}

func TestInMemoryDedupStore_IsProcessed(t *testing.T) {
	store := NewInMemoryDedupStore()
	defer store.Close()
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "evt_unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "evt_known", time.Minute)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "evt_known")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryDedupStore_Release(t *testing.T) {
	store := NewInMemoryDedupStore()
	defer store.Close()
	ctx := context.Background()

	claimed, err := store.MarkProcessed(ctx, "evt_release", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Release(ctx, "evt_release"))

	// A released claim can be retaken, so a redelivery gets applied
	claimed, err = store.MarkProcessed(ctx, "evt_release", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Releasing an unknown ID is a no-op
	assert.NoError(t, store.Release(ctx, "evt_never_claimed"))
}

func TestInMemoryDedupStore_Sweep(t *testing.T) {
	store := NewInMemoryDedupStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "evt_sweep", 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, store.Size())

	time.Sleep(10 * time.Millisecond)
	store.sweep()

	assert.Equal(t, 0, store.Size())
}

func TestInMemoryDedupStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryDedupStore()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
