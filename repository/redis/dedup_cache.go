package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskpilot/backend/repository"
)

const dedupPrefix = "webhook:seen:"

type dedupCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupCache returns a Redis-backed delivery dedup cache. Keys live for
// ttl; after that a redelivery is treated as new.
func NewDedupCache(client *redis.Client, ttl time.Duration) repository.DedupCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &dedupCache{client: client, ttl: ttl}
}

func (c *dedupCache) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, dedupPrefix+key, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	// SetNX succeeds only when the key was absent.
	return !ok, nil
}
