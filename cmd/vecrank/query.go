package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kailas-cloud/vecrank/internal/domain/rerank/request"
	chiTransport "github.com/kailas-cloud/vecrank/internal/transport/chi"
)

// runQuery runs one best-similarity request against the configured collaborators.
func runQuery(ctx context.Context, opts options, text string, topK int, topKSet bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if !topKSet {
		topK = a.cfg.Rerank.DefaultTopK
	}
	req, err := request.New(text, topK, a.cfg.Rerank.MaxTopK)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	res, err := a.rerank.BestSimilarity(ctx, req)
	if err != nil {
		return fmt.Errorf("best similarity: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(chiTransport.BestCandidate{ //nolint:wrapcheck // write error to stdout
		ID:               res.ID,
		Text:             res.Text,
		WeaviateDistance: res.Distance,
		GeminiSimilarity: res.Similarity,
	})
}
