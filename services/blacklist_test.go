package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Revoked token is reported revoked", func(t *testing.T) {
		store := NewMemoryRevocationStore()

		err := store.Revoke(ctx, "token-a", time.Now().Add(time.Hour))
		assert.NoError(t, err)

		revoked, err := store.IsRevoked(ctx, "token-a")
		assert.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("Unknown token is not revoked", func(t *testing.T) {
		store := NewMemoryRevocationStore()

		revoked, err := store.IsRevoked(ctx, "never-seen")
		assert.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("Revoking twice is harmless", func(t *testing.T) {
		store := NewMemoryRevocationStore()
		expiry := time.Now().Add(time.Hour)

		assert.NoError(t, store.Revoke(ctx, "token-a", expiry))
		assert.NoError(t, store.Revoke(ctx, "token-a", expiry))

		revoked, err := store.IsRevoked(ctx, "token-a")
		assert.NoError(t, err)
		assert.True(t, revoked)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("Expired entry reads as not revoked and is dropped", func(t *testing.T) {
		store := NewMemoryRevocationStore()

		assert.NoError(t, store.Revoke(ctx, "token-a", time.Now().Add(-time.Minute)))
		assert.Equal(t, 1, store.Len())

		revoked, err := store.IsRevoked(ctx, "token-a")
		assert.NoError(t, err)
		assert.False(t, revoked)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("Revoke sweeps expired entries", func(t *testing.T) {
		store := NewMemoryRevocationStore()

		assert.NoError(t, store.Revoke(ctx, "stale-1", time.Now().Add(-time.Minute)))
		assert.NoError(t, store.Revoke(ctx, "stale-2", time.Now().Add(-time.Second)))
		assert.NoError(t, store.Revoke(ctx, "fresh", time.Now().Add(time.Hour)))

		// The insert of "fresh" swept both stale entries.
		assert.Equal(t, 1, store.Len())

		revoked, err := store.IsRevoked(ctx, "fresh")
		assert.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("Concurrent access is safe", func(t *testing.T) {
		store := NewMemoryRevocationStore()
		expiry := time.Now().Add(time.Hour)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				store.Revoke(ctx, "shared", expiry)
			}()
			go func() {
				defer wg.Done()
				store.IsRevoked(ctx, "shared")
			}()
		}
		wg.Wait()

		revoked, err := store.IsRevoked(ctx, "shared")
		assert.NoError(t, err)
		assert.True(t, revoked)
	})
}
