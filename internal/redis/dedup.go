package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers payment callbacks that were already processed so
// provider retries can be answered without re-running the settlement path.
type Deduper interface {
	// MarkSeen returns true the first time key is recorded within ttl.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) Deduper {
	return &redisDeduper{client: client}
}

func (d *redisDeduper) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, "dedup:"+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark callback seen: %w", err)
	}
	return ok, nil
}

// NoopDeduper treats every callback as first-seen. The order-id guarded
// update in the ledger keeps repeated callbacks harmless without it.
type NoopDeduper struct{}

func (NoopDeduper) MarkSeen(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
