// Package embedding provides the embedding interface and an Ollama-backed
// implementation used by C3 (§4.3): dense, L2-normalized vectors with a
// dimension discovered from the live model rather than hard-coded, and a
// query/document instruction split for BGE-family models.
package embedding

import (
	"context"
	"math"
)

// Embedder generates dense embeddings for chunk text and for queries.
type Embedder interface {
	// Embed generates one normalized embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates normalized embedding vectors for multiple texts,
	// in the same order as the input, bounded by an internal concurrency
	// limit (§4.3).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates a normalized embedding for a search query. For
	// models that expect an asymmetric instruction prefix (BGE family) this
	// differs from Embed on the same text (§4.3).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector length, frozen after the first
	// successful call discovers it from the live model (§4.3).
	Dimension() int

	// ModelName returns the configured embedding model's name.
	ModelName() string
}

// l2Normalize scales v to unit length in place and returns it. A zero vector
// is returned unchanged since it has no direction to normalize.
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
	return v
}
