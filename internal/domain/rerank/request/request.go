package request

import (
	"fmt"

	"github.com/kailas-cloud/vecrank/internal/domain"
)

// Re-rank parameter limits.
const (
	DefaultTopK = 5
	MaxTopK     = 100
)

// Request is a validated re-rank query.
type Request struct {
	text string
	topK int
}

// New validates re-rank parameters. topK must be in [1, maxTopK];
// maxTopK <= 0 falls back to MaxTopK. Empty text is allowed and passed
// through to the embedding provider as is.
func New(text string, topK, maxTopK int) (Request, error) {
	if maxTopK <= 0 {
		maxTopK = MaxTopK
	}
	if topK < 1 {
		return Request{}, fmt.Errorf("%w: top_k must be >= 1, got %d", domain.ErrInvalidRequest, topK)
	}
	if topK > maxTopK {
		return Request{}, fmt.Errorf("%w: top_k must be <= %d, got %d", domain.ErrInvalidRequest, maxTopK, topK)
	}
	return Request{text: text, topK: topK}, nil
}

// Text returns the query text.
func (r Request) Text() string { return r.text }

// TopK returns the number of candidates requested from the index.
func (r Request) TopK() int { return r.topK }
