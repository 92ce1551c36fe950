package initializers

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectToRedis returns nil when REDIS_URL is unset; callers then run
// without a cache.
func ConnectToRedis(ctx context.Context) (*redis.Client, error) {
	if AppConfig.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(AppConfig.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}
