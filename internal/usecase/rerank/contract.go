package rerank

import (
	"context"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/candidate"
)

// Index returns the k nearest candidates for a vector, nearest first.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]candidate.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
