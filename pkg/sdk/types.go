package vecrank

// Result is the best-matching candidate of a re-rank call.
// Distance is the index-native distance and Similarity the recomputed
// cosine similarity, both rounded to 4 decimals.
type Result struct {
	ID         string
	Text       string
	Distance   float64
	Similarity float64
	// EmbeddingCalls and EmbeddingTokens report provider usage for the call.
	EmbeddingCalls  int
	EmbeddingTokens int
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // component → "ok"/"error"
}
