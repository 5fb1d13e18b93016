package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"julianmorley.ca/pasargad/storefront/pkg/global"
)

func RedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     global.GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
		Password: global.GetEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       0,
		Protocol: 2,
	})
}

// Connect builds a client from the environment and checks it answers.
func Connect(ctx context.Context) (*redis.Client, error) {
	client := RedisClient()

	ctx, cancel := global.WithTimer(ctx, 0)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", client.Options().Addr, err)
	}
	return client, nil
}
