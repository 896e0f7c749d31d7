package refs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares reference counts between API instances.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client), nil
}

func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "refcount:"}
}

func (r *RedisCache) key(id string) string {
	return r.prefix + id
}

func (r *RedisCache) Get(ctx context.Context, id string) (Count, bool, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Count{}, false, nil
	}
	if err != nil {
		return Count{}, false, fmt.Errorf("read reference count: %w", err)
	}
	var c Count
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Count{}, false, fmt.Errorf("decode reference count: %w", err)
	}
	return c, true, nil
}

func (r *RedisCache) Set(ctx context.Context, id string, c Count, ttl time.Duration) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode reference count: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save reference count: %w", err)
	}
	return nil
}

// Invalidate drops cached counts, e.g. after a transaction touched the ids.
func (r *RedisCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate reference counts: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
