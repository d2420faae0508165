//go:build integration

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interdict/pkg/domain"
	"interdict/pkg/testutil/containers"
)

func TestCachedDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	backing := NewStatic(map[domain.AccountID]string{
		"provider-a": "Example Telecom",
	})
	cached := NewCached(backing, rc.Client, time.Minute)

	t.Run("miss falls through and populates the cache", func(t *testing.T) {
		name, err := cached.ResolveName(ctx, "provider-a")
		require.NoError(t, err)
		assert.Equal(t, "Example Telecom", name)

		stored, err := rc.Client.Get(ctx, "directory:name:provider-a").Result()
		require.NoError(t, err)
		assert.Equal(t, "Example Telecom", stored)
	})

	t.Run("hit serves from the cache", func(t *testing.T) {
		// Change the backing name; the cached value must win until
		// invalidation.
		backing.Register("provider-a", "Renamed Telecom")

		name, err := cached.ResolveName(ctx, "provider-a")
		require.NoError(t, err)
		assert.Equal(t, "Example Telecom", name)
	})

	t.Run("invalidation drops the stale entry", func(t *testing.T) {
		require.NoError(t, cached.Invalidate(ctx, "provider-a"))

		name, err := cached.ResolveName(ctx, "provider-a")
		require.NoError(t, err)
		assert.Equal(t, "Renamed Telecom", name)
	})

	t.Run("unknown account is not cached", func(t *testing.T) {
		_, err := cached.ResolveName(ctx, "provider-x")
		require.Error(t, err)

		backing.Register("provider-x", "Late Arrival")
		name, err := cached.ResolveName(ctx, "provider-x")
		require.NoError(t, err)
		assert.Equal(t, "Late Arrival", name)
	})
}
