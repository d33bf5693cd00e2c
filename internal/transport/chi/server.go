// Package chi exposes the re-rank service over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/candidate"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/request"
	"github.com/kailas-cloud/vecrank/internal/logger"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
)

// maxBodyBytes bounds the request body of POST /best_similarity.
const maxBodyBytes = 1 << 20

// Reranker finds the best candidate for a query.
type Reranker interface {
	BestSimilarity(ctx context.Context, req request.Request) (candidate.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Limits holds request parameter defaults.
type Limits struct {
	DefaultTopK int
	MaxTopK     int
}

// Server serves the HTTP API.
type Server struct {
	rerank Reranker
	health HealthChecker
	limits Limits
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(rerank Reranker, health HealthChecker, limits Limits, logger *zap.Logger) *Server {
	if limits.DefaultTopK <= 0 {
		limits.DefaultTopK = request.DefaultTopK
	}
	if limits.MaxTopK <= 0 {
		limits.MaxTopK = request.MaxTopK
	}
	return &Server{rerank: rerank, health: health, limits: limits, logger: logger}
}

// Register mounts the API routes on r.
func (s *Server) Register(r gochi.Router) {
	r.Post("/best_similarity", s.BestSimilarity)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// bestSimilarityRequest is the POST /best_similarity body.
// Pointers distinguish absent fields from zero values.
type bestSimilarityRequest struct {
	Text *string `json:"text"`
	TopK *int    `json:"top_k"`
}

// BestCandidate is the POST /best_similarity response.
type BestCandidate struct {
	ID               string  `json:"id"`
	Text             string  `json:"text"`
	WeaviateDistance float64 `json:"weaviate_distance"`
	GeminiSimilarity float64 `json:"gemini_similarity"`
}

// ErrorResponse is the error body shared by all endpoints.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// BestSimilarity handles POST /best_similarity.
func (s *Server) BestSimilarity(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())

	res, err := s.rerank.BestSimilarity(ctx, req)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, BestCandidate{
		ID:               res.ID,
		Text:             res.Text,
		WeaviateDistance: res.Distance,
		GeminiSimilarity: res.Similarity,
	})
}

func (s *Server) decodeRequest(r *http.Request) (request.Request, error) {
	var body bestSimilarityRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return request.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	if body.Text == nil {
		return request.Request{}, errors.New("text: field required")
	}

	topK := s.limits.DefaultTopK
	if body.TopK != nil {
		topK = *body.TopK
	}

	req, err := request.New(*body.Text, topK, s.limits.MaxTopK)
	if err != nil {
		return request.Request{}, err //nolint:wrapcheck // message is client facing
	}
	return req, nil
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
		logger.FromContext(r.Context(), s.logger).Warn("health check degraded",
			zap.Any("errors", report.Errors),
		)
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Calls() == 0 {
		return
	}
	w.Header().Set("X-Embedding-Calls", strconv.Itoa(usage.Calls()))
	if tokens := usage.TotalTokens(); tokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// handleDomainError maps pipeline errors to HTTP. Invalid requests are 422;
// everything else is 500 with the error message as detail.
func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx, s.logger)
	if errors.Is(err, domain.ErrInvalidRequest) {
		log.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	fields := []zap.Field{zap.Error(err)}
	var rse *domain.RemoteServiceError
	if errors.As(err, &rse) {
		fields = append(fields, zap.String("service", rse.Service), zap.String("op", rse.Op))
	}
	log.Error("best similarity failed", fields...)
	writeError(w, http.StatusInternalServerError, err.Error())
}
