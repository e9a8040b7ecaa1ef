// Package embed turns catalog text into fixed-size vectors for the vector index.
//
// Embedding happens at index time and when a semantic query arrives. The
// static embedder needs no model download or network, so the vector source
// works everywhere; CachedEmbedder keeps repeated query vectors in memory.
package embed

import (
	"context"
	"math"
)

// Dimension bounds.
const (
	// DefaultDimensions is the default vector size.
	DefaultDimensions = 256

	// MinDimensions is the smallest useful vector size.
	MinDimensions = 16
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
