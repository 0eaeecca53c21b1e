package exportcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

const keyPrefix = "bjj:export:"

// Redis is a Cache backed by a Redis hash per document.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates a Redis cache using client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// NewRedisFromURL parses a redis:// URL and creates a client and cache.
func NewRedisFromURL(rawURL string) (*Redis, *redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedis(client), client, nil
}

// Get reads the cached document hash.
func (r *Redis) Get(ctx context.Context, key string) (exporter.File, bool, error) {
	vals, err := r.client.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		return exporter.File{}, false, fmt.Errorf("get cached export: %w", err)
	}
	if len(vals) == 0 || vals["name"] == "" {
		return exporter.File{}, false, nil
	}

	return exporter.File{
		Name:        vals["name"],
		ContentType: vals["content_type"],
		Body:        []byte(vals["body"]),
	}, true, nil
}

// Set writes the document hash and its expiry in one pipeline.
func (r *Redis) Set(ctx context.Context, key string, f exporter.File, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	redisKey := keyPrefix + key
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisKey)
	pipe.HSet(ctx, redisKey, "name", f.Name, "content_type", f.ContentType, "body", f.Body)
	pipe.Expire(ctx, redisKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache export: %w", err)
	}
	return nil
}

// Ensure Redis implements Cache.
var _ Cache = (*Redis)(nil)
