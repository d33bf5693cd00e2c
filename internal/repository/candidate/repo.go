// Package candidate maps vector index hits onto re-rank candidates.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/vecrank/internal/db"
	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/candidate"
	"github.com/kailas-cloud/vecrank/internal/metrics"
)

// store is the consumer interface for KNN search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config describes where candidates live in the index.
type Config struct {
	// Collection is the Weaviate class, FT index or Qdrant collection.
	Collection string
	// TextField is the stored property holding the candidate text.
	TextField string
	// Driver labels metrics.
	Driver string
	// Timeout bounds a single search call. Zero keeps the caller's deadline.
	Timeout time.Duration
}

// Repo implements usecase/rerank.Index.
type Repo struct {
	store store
	cfg   Config
}

// New creates a candidate repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// Search returns at most k candidates nearest first.
// Any driver failure is reported as a vector_index RemoteServiceError.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]candidate.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrInvalidRequest)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		Collection: r.cfg.Collection,
		TextField:  r.cfg.TextField,
		Vector:     vector,
		K:          k,
	})
	metrics.IndexRequestDuration.WithLabelValues(r.cfg.Driver).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.IndexRequestsTotal.WithLabelValues(r.cfg.Driver, "error").Inc()
		return nil, domain.NewRemoteServiceError(domain.ServiceVectorIndex, "search", describe(err, r.cfg.Collection))
	}
	metrics.IndexRequestsTotal.WithLabelValues(r.cfg.Driver, "success").Inc()

	entries := res.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Distance < entries[j].Distance
	})
	if len(entries) > k {
		entries = entries[:k]
	}

	out := make([]candidate.Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, candidate.New(e.Key, e.Fields[r.cfg.TextField], e.Distance))
	}
	return out, nil
}

// describe names the collection in not-found errors so the message is actionable.
func describe(err error, collection string) error {
	if errors.Is(err, db.ErrIndexNotFound) || errors.Is(err, db.ErrMissingResult) {
		return fmt.Errorf("collection %q: %w", collection, err)
	}
	return err
}
