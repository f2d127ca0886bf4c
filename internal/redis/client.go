package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects with short timeouts: Redis only guards slot
// contention and callback dedup here, so a slow instance must fail fast
// rather than stall a booking. poolSize comes from config
// (REDIS_POOL_SIZE); values below 1 fall back to a single connection.
func NewRedisClient(addr, username, password string, poolSize int) (*redis.Client, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
