package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 384

// Hash derives vectors from an FNV-1a seed expanded with a linear
// congruential generator. The output is deterministic and unit length,
// which keeps similarity scores stable without an external model. It is
// a stand-in for a real embedding provider, not a semantic model.
type Hash struct {
	dims int
}

// NewHash returns a hash embedder with the given dimensionality.
// Non-positive values fall back to DefaultDimensions.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hash{dims: dims}
}

func (h *Hash) Dimensions() int { return h.dims }

func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	f := fnv.New64a()
	f.Write([]byte(text))
	seed := f.Sum64()

	vec := make([]float32, h.dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed)) / float32(math.MaxInt64)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	// Normalize to unit length so dot products equal cosine similarity.
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}
