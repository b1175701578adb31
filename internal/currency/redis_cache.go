package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"xandcastle/internal/domain"
)

// RedisCache keeps rates under one key per base currency. Entries carry no Redis TTL;
// age is judged from FetchedAt so stale rates stay available as a fallback.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client, prefix: "xandcastle:fx:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, base string) (*domain.ExchangeRates, error) {
	raw, err := c.client.Get(ctx, c.prefix+base).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rates domain.ExchangeRates
	if err := json.Unmarshal(raw, &rates); err != nil {
		return nil, fmt.Errorf("decode cached rates: %w", err)
	}
	return &rates, nil
}

func (c *RedisCache) Put(ctx context.Context, rates domain.ExchangeRates) error {
	b, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+rates.Base, b, 0).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }
