package processor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "orders:processed"

// RedisDeduper stores processed message IDs in Redis so all worker instances
// can skip duplicates delivered by the at-least-once queue.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(id string) string {
	return dedupeKeyPrefix + ":" + id
}

// Add records the ID if it does not already exist. It returns true when the
// ID was newly added.
func (r *RedisDeduper) Add(ctx context.Context, id string) (bool, error) {
	return r.client.SetNX(ctx, r.key(id), 1, r.ttl).Result()
}

// Remove deletes a previously recorded ID. It is used when processing fails
// so the redriven message is handled again.
func (r *RedisDeduper) Remove(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
