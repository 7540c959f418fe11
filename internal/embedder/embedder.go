// Package embedder turns text into fixed-size vectors for semantic search.
package embedder

import "context"

// Embedder produces a vector representation of a piece of text. Vectors
// from the same implementation always have the same dimensionality and
// equal inputs always produce equal outputs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
