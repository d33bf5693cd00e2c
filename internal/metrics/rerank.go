package metrics

import "github.com/prometheus/client_golang/prometheus"

// Rerank outcome labels.
const (
	RerankStatusOK      = "ok"
	RerankStatusEmpty   = "empty"
	RerankStatusInvalid = "invalid"
	RerankStatusError   = "error"
)

var (
	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecrank",
			Name:      "rerank_requests_total",
			Help:      "Total number of best-similarity requests by outcome",
		},
		[]string{"status"},
	)

	RerankCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecrank",
			Name:      "rerank_candidates",
			Help:      "Number of candidates rescored per request",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)
)

var rerankMetricsRegistered bool

// RegisterRerankMetrics registers rerank metrics. Must be called once from main.
func RegisterRerankMetrics() {
	if rerankMetricsRegistered {
		return
	}
	prometheus.MustRegister(RerankRequestsTotal)
	prometheus.MustRegister(RerankCandidates)
	rerankMetricsRegistered = true
}
