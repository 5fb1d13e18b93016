package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key the storefront writes.
const KeyPrefix = "storefront:"

// Persister stores shopper state as plain string keys with a sliding TTL.
type Persister struct {
	client redisclient.UniversalClient
	ttl    time.Duration
}

// NewPersister wraps client. A non-positive ttl keeps keys forever.
func NewPersister(client redisclient.UniversalClient, ttl time.Duration) *Persister {
	return &Persister{client: client, ttl: ttl}
}

func (p *Persister) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := p.client.Get(ctx, KeyPrefix+key).Result()
	if errors.Is(err, redisclient.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s from Redis: %w", key, err)
	}

	if p.ttl > 0 {
		if err := p.client.Expire(ctx, KeyPrefix+key, p.ttl).Err(); err != nil {
			return value, true, fmt.Errorf("failed to refresh TTL for %s: %w", key, err)
		}
	}
	return value, true, nil
}

func (p *Persister) Set(ctx context.Context, key, value string) error {
	if err := p.client.Set(ctx, KeyPrefix+key, value, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", key, err)
	}
	return nil
}

func (p *Persister) Remove(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove %s from Redis: %w", key, err)
	}
	return nil
}

// RemoveAll drops several keys in one transaction.
func (p *Persister) RemoveAll(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := p.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, KeyPrefix+key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove %d keys from Redis: %w", len(keys), err)
	}
	return nil
}
