package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "emarsys-cli:cache:"

// RedisStore keeps one entry as a Redis string whose TTL matches the cache TTL.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisClient connects to a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", EnvRedisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisStore stores the entry of scope under
// "emarsys-cli:cache:<resource>:<12hex>".
func NewRedisStore(client *redis.Client, scope Scope, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		key:    keyPrefix + scope.resource() + ":" + scope.hash(),
		ttl:    ttl,
	}
}

// Key returns the Redis key of the entry.
func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Get(ctx context.Context, dst any) bool {
	if Disabled() {
		return false
	}
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	return json.Unmarshal(e.Items, dst) == nil
}

func (s *RedisStore) Put(ctx context.Context, v any) {
	if Disabled() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	data, err := json.Marshal(entry{CachedAt: now(), Items: raw})
	if err != nil {
		return
	}
	_ = s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context) {
	_ = s.client.Del(ctx, s.key).Err()
}

func clearRedis(ctx context.Context, client *redis.Client) (int, error) {
	removed := 0
	iter := client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := client.Del(ctx, iter.Val()).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return removed, err
		}
		removed += int(n)
	}
	return removed, iter.Err()
}
