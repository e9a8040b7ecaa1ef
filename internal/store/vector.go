package store

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/fusionsearch/internal/embed"
)

// VectorConfig configures the HNSW graph.
type VectorConfig struct {
	// M is the max connections per node (default: 16).
	M int

	// EfSearch is the search candidate list size (default: 20).
	EfSearch int

	// OrphanThreshold is the orphans/nodes ratio above which the graph is
	// rebuilt from the live vectors (default: 0.2).
	OrphanThreshold float64

	// MinOrphanCount keeps small graphs from being rebuilt on every
	// replacement (default: 100).
	MinOrphanCount int
}

// DefaultVectorConfig returns the default graph parameters.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{M: 16, EfSearch: 20, OrphanThreshold: 0.2, MinOrphanCount: 100}
}

// VectorStats describes the graph, orphans included.
type VectorStats struct {
	Live        int
	GraphNodes  int
	Orphans     int
	Compactions int
}

// VectorIndex embeds documents and answers nearest-neighbour queries.
//
// Replaced and deleted documents are dropped from the id maps only; their
// graph nodes stay behind and are skipped at query time until the orphan
// share passes OrphanThreshold and the graph is rebuilt.
type VectorIndex struct {
	mu       sync.RWMutex
	embedder embed.Embedder
	graph    *hnsw.Graph[uint64]
	cfg      VectorConfig
	dims     int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	docs    map[string]Document
	vectors map[string][]float32
	nextKey uint64
	closed  bool

	compactions int
}

// NewVectorIndex creates an empty index over embedder.
func NewVectorIndex(embedder embed.Embedder, cfg VectorConfig) (*VectorIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	defaults := DefaultVectorConfig()
	if cfg.M <= 0 {
		cfg.M = defaults.M
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = defaults.EfSearch
	}
	if cfg.OrphanThreshold <= 0 || cfg.OrphanThreshold >= 1 {
		cfg.OrphanThreshold = defaults.OrphanThreshold
	}
	if cfg.MinOrphanCount <= 0 {
		cfg.MinOrphanCount = defaults.MinOrphanCount
	}

	return &VectorIndex{
		embedder: embedder,
		graph:    newGraph(cfg),
		cfg:      cfg,
		dims:     embedder.Dimensions(),
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		docs:     make(map[string]Document),
		vectors:  make(map[string][]float32),
	}, nil
}

func newGraph(cfg VectorConfig) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Index embeds and adds or replaces documents. Documents whose text embeds
// to the zero vector are stored but never returned.
func (v *VectorIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text()
	}
	vectors, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}

	for _, vec := range vectors {
		if len(vec) != v.dims {
			return ErrDimensionMismatch{Expected: v.dims, Got: len(vec)}
		}
	}

	for i, d := range docs {
		v.forget(d.ID)
		v.docs[d.ID] = d

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if !normalizeVectorInPlace(vec) {
			continue
		}

		v.add(d.ID, vec)
	}
	v.maybeCompact()
	return nil
}

// add inserts a normalized vector under a fresh key. Callers hold the
// write lock.
func (v *VectorIndex) add(id string, vec []float32) {
	key := v.nextKey
	v.nextKey++
	v.graph.Add(hnsw.MakeNode(key, vec))
	v.idMap[id] = key
	v.keyMap[key] = id
	v.vectors[id] = vec
}

// maybeCompact rebuilds the graph from the live vectors once orphans pass
// both MinOrphanCount and OrphanThreshold. Callers hold the write lock.
func (v *VectorIndex) maybeCompact() {
	nodes := v.graph.Len()
	orphans := nodes - len(v.idMap)
	if orphans <= 0 || orphans < v.cfg.MinOrphanCount {
		return
	}
	if float64(orphans)/float64(nodes) <= v.cfg.OrphanThreshold {
		return
	}

	live := v.vectors
	v.graph = newGraph(v.cfg)
	v.idMap = make(map[string]uint64, len(live))
	v.keyMap = make(map[uint64]string, len(live))
	v.vectors = make(map[string][]float32, len(live))
	v.nextKey = 0
	for _, id := range slices.Sorted(maps.Keys(live)) {
		v.add(id, live[id])
	}
	v.compactions++
}

// Stats returns graph statistics.
func (v *VectorIndex) Stats() VectorStats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	nodes := v.graph.Len()
	return VectorStats{
		Live:        len(v.idMap),
		GraphNodes:  nodes,
		Orphans:     nodes - len(v.idMap),
		Compactions: v.compactions,
	}
}

// forget orphans id's graph node. Callers hold the write lock.
func (v *VectorIndex) forget(id string) {
	if key, ok := v.idMap[id]; ok {
		delete(v.keyMap, key)
		delete(v.idMap, id)
		delete(v.vectors, id)
	}
}

// Delete removes documents by id.
func (v *VectorIndex) Delete(_ context.Context, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	for _, id := range ids {
		v.forget(id)
		delete(v.docs, id)
	}
	v.maybeCompact()
	return nil
}

// Count returns the number of documents with a usable vector.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Search returns up to k documents nearest to text, scored by cosine
// similarity mapped into [0, 1].
func (v *VectorIndex) Search(ctx context.Context, text string, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}

	query, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return nil, ErrClosed
	}
	if len(query) != v.dims {
		return nil, ErrDimensionMismatch{Expected: v.dims, Got: len(query)}
	}
	if len(v.idMap) == 0 {
		return []Hit{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if !normalizeVectorInPlace(normalized) {
		return []Hit{}, nil
	}

	// orphaned nodes still occupy graph slots
	want := k
	if orphans := v.graph.Len() - len(v.idMap); orphans > 0 {
		want += orphans
	}

	nodes := v.graph.Search(normalized, want)
	hits := make([]Hit, 0, min(k, len(nodes)))
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		hits = append(hits, Hit{
			Doc:   v.docs[id],
			Score: float64(distanceToScore(distance)),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Close releases the embedder.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	return v.embedder.Close()
}

// normalizeVectorInPlace scales v to unit length and reports false for the
// zero vector.
func normalizeVectorInPlace(v []float32) bool {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return false
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
	return true
}

// distanceToScore maps cosine distance in [0, 2] to a score in [0, 1].
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
