// Package telemetry records search metrics.
// QueryStats keeps an in-process summary for the stats tool; Metrics exports
// Prometheus collectors for scraping.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent is one answered search or suggestion request.
type QueryEvent struct {
	Query       string
	Mode        string
	ResultCount int
	Latency     time.Duration
	Degraded    bool
	Cached      bool
	Timestamp   time.Time
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		n := copy(result, b.items[b.head:])
		copy(result[n:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms splits a query into lowercased terms of at least 3 bytes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// =============================================================================
// Snapshot
// =============================================================================

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryStatsSnapshot is an immutable copy of the collected stats.
type QueryStatsSnapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ModeCounts          map[string]int64        `json:"mode_counts"`
	CacheHits           int64                   `json:"cache_hits"`
	DegradedCount       int64                   `json:"degraded_count"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	TopTerms            []TermCount             `json:"top_terms"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// CacheHitRate returns the fraction of queries answered from cache.
func (s *QueryStatsSnapshot) CacheHitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalQueries)
}

// DegradedRate returns the fraction of queries answered from fewer sources than intended.
func (s *QueryStatsSnapshot) DegradedRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.DegradedCount) / float64(s.TotalQueries)
}

// =============================================================================
// Query Stats
// =============================================================================

// QueryStatsConfig configures the collector capacities.
type QueryStatsConfig struct {
	TopTermsCapacity    int // Max terms to track (default: 100)
	ZeroResultsCapacity int // Max zero-result queries to keep (default: 50)
}

// DefaultQueryStatsConfig returns sensible defaults.
func DefaultQueryStatsConfig() QueryStatsConfig {
	return QueryStatsConfig{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 50,
	}
}

// QueryStats aggregates query events in memory.
// Thread-safe for concurrent access.
type QueryStats struct {
	mu sync.Mutex

	modes           map[string]int64
	latencies       map[LatencyBucket]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	total           int64
	cacheHits       int64
	degraded        int64
	zeroResultCount int64
	since           time.Time
}

// NewQueryStats creates a collector with cfg, filling in defaults.
func NewQueryStats(cfg QueryStatsConfig) *QueryStats {
	def := DefaultQueryStatsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	return &QueryStats{
		modes:       make(map[string]int64),
		latencies:   make(map[LatencyBucket]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		since:       time.Now(),
	}
}

// Record folds one event into the aggregates. Safe on a nil receiver.
func (s *QueryStats) Record(event QueryEvent) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.modes[event.Mode]++
	s.latencies[LatencyToBucket(event.Latency)]++
	if event.Cached {
		s.cacheHits++
	}
	if event.Degraded {
		s.degraded++
	}
	if event.ResultCount == 0 {
		s.zeroResultCount++
		s.zeroResults.Add(event.Query)
	}
	for _, term := range ExtractTerms(event.Query) {
		count, _ := s.topTerms.Get(term)
		s.topTerms.Add(term, count+1)
	}
}

// Snapshot returns the current aggregates.
func (s *QueryStats) Snapshot() *QueryStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	modes := make(map[string]int64, len(s.modes))
	for k, v := range s.modes {
		modes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(s.latencies))
	for k, v := range s.latencies {
		latencies[k] = v
	}

	topTerms := make([]TermCount, 0, s.topTerms.Len())
	for _, key := range s.topTerms.Keys() {
		if count, ok := s.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	return &QueryStatsSnapshot{
		TotalQueries:        s.total,
		ModeCounts:          modes,
		CacheHits:           s.cacheHits,
		DegradedCount:       s.degraded,
		ZeroResultCount:     s.zeroResultCount,
		ZeroResultQueries:   s.zeroResults.Items(),
		TopTerms:            topTerms,
		LatencyDistribution: latencies,
		Since:               s.since,
	}
}
