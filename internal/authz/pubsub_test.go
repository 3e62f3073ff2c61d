package authz

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newBroadcaster(t *testing.T) (*CacheBroadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheBroadcaster(client, nil), client
}

func TestBroadcasterInvalidateRemovesEntry(t *testing.T) {
	broadcaster, _ := newBroadcaster(t)
	cache := NewCache(time.Minute)
	cache.Set("user-1", ModulePermissions{ModuleAgenda: {Read: true}})
	cache.Set("user-2", ModulePermissions{ModuleAgenda: {Read: true}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broadcaster.Listen(ctx, cache)

	// Subscription setup races the publish; retry until the listener
	// has applied the event.
	require.Eventually(t, func() bool {
		require.NoError(t, broadcaster.Invalidate(ctx, "user-1"))
		return !cache.Has("user-1")
	}, 2*time.Second, 20*time.Millisecond)
	require.True(t, cache.Has("user-2"))
}

func TestBroadcasterInvalidateAllClears(t *testing.T) {
	broadcaster, _ := newBroadcaster(t)
	cache := NewCache(time.Minute)
	cache.Set("user-1", ModulePermissions{})
	cache.Set("user-2", ModulePermissions{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broadcaster.Listen(ctx, cache)

	require.Eventually(t, func() bool {
		require.NoError(t, broadcaster.InvalidateAll(ctx))
		return cache.Len() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
