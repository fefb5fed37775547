// Package embedding turns item text into fixed-length, L2-normalized vectors.
//
// A Service tries a primary network model and falls back, without failing,
// to the deterministic offline HashedProvider. Vectors are cached per run.
package embedding

import (
	"context"
	"math"
)

// Provider produces embedding vectors
type Provider interface {
	// Embed returns the vector for one text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the vector space; vectors from different models are not comparable
	Model() string
}

// Normalize scales v to unit L2 norm in place. The zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Norm returns the L2 norm of v
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
