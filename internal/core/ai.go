package core

import "context"

// EmbeddingProvider turns chunk texts into fixed-length vectors. Vectors are
// returned in input order. Implementations report throttling via
// *RateLimitError so the pipeline can back off and retry.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the declared length of every vector this provider returns.
	Dimensions() int
}
