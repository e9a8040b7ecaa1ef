package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aman-CERP/fusionsearch/internal/search"
)

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "fusionsearch:"

// RedisConfig configures a shared response cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key (default: "fusionsearch:").
	Prefix string

	// Timeout bounds each cache round trip (default: 50ms).
	Timeout time.Duration
}

// NewRedisClient creates a client from cfg. It does not connect.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   -1,
	})
}

// RedisStore is a search.CacheStore backed by Redis. Entries are JSON
// encoded and expire server-side at their ExpiresAt.
type RedisStore[T any] struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore[T any](client redis.UniversalClient, prefix string) *RedisStore[T] {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore[T]{client: client, prefix: prefix}
}

var _ search.CacheStore[search.SearchResponse] = (*RedisStore[search.SearchResponse])(nil)

// Get implements search.CacheStore.
func (s *RedisStore[T]) Get(ctx context.Context, key string) (search.CacheEntry[T], bool, error) {
	var entry search.CacheEntry[T]

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, false, fmt.Errorf("redis entry %s is corrupt: %w", key, err)
	}
	return entry, true, nil
}

// Set implements search.CacheStore. Already expired entries are not written.
func (s *RedisStore[T]) Set(ctx context.Context, entry search.CacheEntry[T]) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+entry.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
