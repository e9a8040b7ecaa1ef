package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
)

// Cache endpoints, used as key prefixes and metric labels.
const (
	EndpointSearch  = "search"
	EndpointSuggest = "suggest"
)

// DefaultCacheSize is the default number of responses an in-process store keeps.
const DefaultCacheSize = 1000

// CacheEntry is one stored response. Entries are never modified after Set.
type CacheEntry[T any] struct {
	Key       string    `json:"key"`
	Response  T         `json:"response"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its lifetime at now.
func (e CacheEntry[T]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStore is a key-value backend for cache entries.
// Get reports a miss with found=false and a nil error.
type CacheStore[T any] interface {
	Get(ctx context.Context, key string) (entry CacheEntry[T], found bool, err error)
	Set(ctx context.Context, entry CacheEntry[T]) error
}

// MemoryStore is an in-process LRU CacheStore.
type MemoryStore[T any] struct {
	entries *lru.Cache[string, CacheEntry[T]]
}

// NewMemoryStore creates an LRU store holding at most size entries.
func NewMemoryStore[T any](size int) *MemoryStore[T] {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, _ := lru.New[string, CacheEntry[T]](size)
	return &MemoryStore[T]{entries: entries}
}

// Get returns the entry stored under key.
func (s *MemoryStore[T]) Get(_ context.Context, key string) (CacheEntry[T], bool, error) {
	e, ok := s.entries.Get(key)
	return e, ok, nil
}

// Set stores entry, replacing any previous entry under the same key.
func (s *MemoryStore[T]) Set(_ context.Context, entry CacheEntry[T]) error {
	s.entries.Add(entry.Key, entry)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore[T]) Len() int {
	return s.entries.Len()
}

// Cache serves responses from a CacheStore and computes them on a miss.
// Store failures are logged and bypassed; they never fail a request.
type Cache[T any] struct {
	store    CacheStore[T]
	endpoint string
	group    singleflight.Group
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	skip     func(T) bool
	now      func() time.Time
}

// NewCache wraps store. A nil store disables caching.
func NewCache[T any](store CacheStore[T], endpoint string, logger *slog.Logger, metrics *telemetry.Metrics) *Cache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[T]{
		store:    store,
		endpoint: endpoint,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// SkipWhen stops values matching skip from being stored. They are still returned.
func (c *Cache[T]) SkipWhen(skip func(T) bool) *Cache[T] {
	c.skip = skip
	return c
}

// GetOrCompute returns the live entry under key, or runs compute and stores
// its result for ttl. hit reports whether the value came from the store.
//
// Concurrent misses on one key share a single compute, which is not
// canceled with any single caller. Each caller stops waiting when its own
// ctx is done. A failed compute is returned to every waiter and never stored.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (T, error)) (value T, hit bool, err error) {
	if c == nil || c.store == nil {
		return c.computeOnly(ctx, compute)
	}

	entry, found, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.bypass("get", key, err)
	case found && !entry.Expired(c.now()):
		c.metrics.ObserveCache(c.endpoint, telemetry.CacheHit)
		return entry.Response, true, nil
	default:
		c.metrics.ObserveCache(c.endpoint, telemetry.CacheMiss)
	}

	// compute runs detached so one waiter canceling does not fail the others
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fresh, err := compute(shared)
		if err != nil {
			return fresh, err
		}
		if ttl > 0 && (c.skip == nil || !c.skip(fresh)) {
			stored := CacheEntry[T]{Key: key, Response: fresh, ExpiresAt: c.now().Add(ttl)}
			if setErr := c.store.Set(shared, stored); setErr != nil {
				c.bypass("set", key, setErr)
			}
		}
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

func (c *Cache[T]) computeOnly(ctx context.Context, compute func(context.Context) (T, error)) (T, bool, error) {
	v, err := compute(ctx)
	return v, false, err
}

func (c *Cache[T]) bypass(op, key string, err error) {
	c.metrics.ObserveCache(c.endpoint, telemetry.CacheBypass)
	attrs := []any{
		slog.String("endpoint", c.endpoint),
		slog.String("op", op),
		slog.String("key", key),
	}
	attrs = append(attrs, apperrors.LogAttrs(apperrors.Wrap(apperrors.ErrCodeCacheUnavailable, err))...)
	c.logger.Warn("cache_bypassed", attrs...)
}

// RequestKey hashes the JSON encoding of a normalized request into a cache key.
// Equal requests always produce equal keys because normalization fixes field
// order, case and tag order.
func RequestKey(endpoint string, req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return endpoint + ":" + hex.EncodeToString(sum[:]), nil
}
