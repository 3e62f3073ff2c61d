package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// invalidationChannel carries user ids whose cached resolutions must be
// dropped. The wildcard payload clears everything.
const (
	invalidationChannel  = "authz.invalidate"
	invalidateAllPayload = "*"
)

// CacheBroadcaster fans cache invalidations out to every running
// service instance over Redis pub/sub. Each instance holds its own
// in-process Cache; the broadcast keeps them aligned when role edits
// are processed elsewhere (e.g. by the background worker).
type CacheBroadcaster struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCacheBroadcaster constructs a broadcaster.
func NewCacheBroadcaster(client *redis.Client, logger *slog.Logger) *CacheBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheBroadcaster{client: client, logger: logger}
}

// Invalidate publishes a single-user invalidation.
func (b *CacheBroadcaster) Invalidate(ctx context.Context, userID string) error {
	if err := b.client.Publish(ctx, invalidationChannel, userID).Err(); err != nil {
		return fmt.Errorf("authz: publish invalidation: %w", err)
	}
	return nil
}

// InvalidateAll publishes a full-cache invalidation.
func (b *CacheBroadcaster) InvalidateAll(ctx context.Context) error {
	if err := b.client.Publish(ctx, invalidationChannel, invalidateAllPayload).Err(); err != nil {
		return fmt.Errorf("authz: publish invalidation: %w", err)
	}
	return nil
}

// Listen subscribes to invalidation events and applies them to cache
// until the context is cancelled. Events received here also cover
// publishes from this process; Remove is idempotent so the overlap is
// harmless.
func (b *CacheBroadcaster) Listen(ctx context.Context, cache *Cache) {
	pubsub := b.client.Subscribe(ctx, invalidationChannel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == invalidateAllPayload {
					cache.Clear()
					continue
				}
				cache.Remove(msg.Payload)
			}
		}
	}()
}
