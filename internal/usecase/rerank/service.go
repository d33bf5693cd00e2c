// Package rerank re-scores vector index candidates with a second embedding model.
package rerank

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/candidate"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/request"
	"github.com/kailas-cloud/vecrank/internal/domain/similarity"
	"github.com/kailas-cloud/vecrank/internal/logger"
	"github.com/kailas-cloud/vecrank/internal/metrics"
	"github.com/kailas-cloud/vecrank/internal/observability"
)

// DefaultConcurrency caps simultaneous candidate embedding calls.
const DefaultConcurrency = 4

// Service finds the index candidate most similar to a query.
type Service struct {
	index       Index
	embed       Embedder
	concurrency int
	logger      *zap.Logger
}

// New creates a rerank service. concurrency <= 0 uses DefaultConcurrency.
func New(index Index, embed Embedder, concurrency int, logger *zap.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, embed: embed, concurrency: concurrency, logger: logger}
}

// BestSimilarity embeds the query, fetches top-k neighbours, re-embeds every
// candidate and returns the one with the highest cosine similarity.
// Any collaborator failure aborts the request; no partial result is returned.
func (s *Service) BestSimilarity(ctx context.Context, req request.Request) (candidate.Result, error) {
	ctx, span := observability.StartRerankSpan(ctx, req.TopK())
	defer span.End()

	res, n, err := s.bestSimilarity(ctx, req)
	metrics.RerankRequestsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		observability.RecordError(span, err)
		return candidate.Result{}, err
	}

	metrics.RerankCandidates.Observe(float64(n))
	observability.RecordRerankResult(span, n, res.ID, res.Similarity)
	return res, nil
}

func (s *Service) bestSimilarity(ctx context.Context, req request.Request) (candidate.Result, int, error) {
	log := logger.FromContext(ctx, s.logger)

	query, err := s.embedText(ctx, "query", req.Text())
	if err != nil {
		return candidate.Result{}, 0, fmt.Errorf("embed query: %w", err)
	}

	cands, err := s.search(ctx, query, req.TopK())
	if err != nil {
		return candidate.Result{}, 0, fmt.Errorf("search index: %w", err)
	}
	if len(cands) == 0 {
		return candidate.Result{}, 0, domain.ErrEmptyResult
	}

	scored, err := s.score(ctx, query, cands)
	if err != nil {
		return candidate.Result{}, len(cands), err
	}

	best, _ := candidate.Best(scored)

	log.Debug("Rerank completed",
		zap.Int("top_k", req.TopK()),
		zap.Int("candidates", len(cands)),
		zap.String("best_id", best.ID()),
		zap.Float64("best_similarity", best.Similarity()),
		zap.Float64("best_distance", best.Distance()),
	)

	return candidate.Result{
		ID:         best.ID(),
		Text:       best.Text(),
		Distance:   similarity.Round(best.Distance(), similarity.ScoreDigits),
		Similarity: similarity.Round(best.Similarity(), similarity.ScoreDigits),
	}, len(cands), nil
}

// score embeds candidates concurrently and keeps index order in the result.
// The first failure cancels the remaining calls.
func (s *Service) score(
	ctx context.Context, query []float32, cands []candidate.Candidate,
) ([]candidate.Scored, error) {
	scored := make([]candidate.Scored, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, c := range cands {
		g.Go(func() error {
			vec, err := s.embedText(gctx, "candidate", c.Text())
			if err != nil {
				return fmt.Errorf("embed candidate %s: %w", c.ID(), err)
			}
			sim, err := similarity.Cosine(query, vec)
			if err != nil {
				return fmt.Errorf("score candidate %s: %w", c.ID(), err)
			}
			scored[i] = candidate.NewScored(c, sim)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per candidate
	}
	return scored, nil
}

func (s *Service) embedText(ctx context.Context, role, text string) ([]float32, error) {
	ctx, span := observability.StartEmbeddingSpan(ctx, role)
	defer span.End()

	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err //nolint:wrapcheck // caller adds context
	}
	return res.Embedding, nil
}

func (s *Service) search(ctx context.Context, query []float32, k int) ([]candidate.Candidate, error) {
	ctx, span := observability.StartIndexSpan(ctx, k)
	defer span.End()

	cands, err := s.index.Search(ctx, query, k)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err //nolint:wrapcheck // caller adds context
	}
	return cands, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.RerankStatusOK
	case errors.Is(err, domain.ErrEmptyResult):
		return metrics.RerankStatusEmpty
	case errors.Is(err, domain.ErrInvalidRequest):
		return metrics.RerankStatusInvalid
	default:
		return metrics.RerankStatusError
	}
}
