package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/config"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/candidate"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/request"
	chiTransport "github.com/kailas-cloud/vecrank/internal/transport/chi"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
)

type stubReranker struct {
	result candidate.Result
}

func (s *stubReranker) BestSimilarity(_ context.Context, _ request.Request) (candidate.Result, error) {
	return s.result, nil
}

type stubHealth struct{}

func (stubHealth) Check(_ context.Context) healthuc.Report {
	return healthuc.Report{Status: healthuc.Healthy}
}

func testRouter(apiKeys []string) http.Handler {
	server := chiTransport.NewServer(
		&stubReranker{result: candidate.Result{ID: "a", Text: "alpha", Distance: 0.1, Similarity: 0.9}},
		stubHealth{},
		chiTransport.Limits{DefaultTopK: 5, MaxTopK: 100},
		zap.NewNop(),
	)
	return newRouter(server, apiKeys, zap.NewNop())
}

func TestBuildIndex_UnknownDriver(t *testing.T) {
	_, err := buildIndex(config.IndexConfig{Driver: "milvus"})
	if err == nil || !strings.Contains(err.Error(), "milvus") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestBuildIndex_WeaviateInvalidURL(t *testing.T) {
	_, err := buildIndex(config.IndexConfig{Driver: config.DriverWeaviate, URL: "not-a-url"})
	if err == nil {
		t.Fatal("expected error for relative weaviate url")
	}
}

func TestBuildEmbedder_UnknownProvider(t *testing.T) {
	_, err := buildEmbedder(config.EmbeddingConfig{Provider: "cohere"}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "cohere") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestBuildEmbedder_Gemini(t *testing.T) {
	emb, err := buildEmbedder(config.EmbeddingConfig{
		Provider: config.ProviderGemini,
		APIKey:   "key",
		Model:    "embedding-001",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb == nil {
		t.Fatal("expected embedder")
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var resp chiTransport.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Detail != "internal error" {
		t.Errorf("detail = %q", resp.Detail)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	testRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_AuthRequired(t *testing.T) {
	h := testRouter([]string{"secret"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/best_similarity", strings.NewReader(`{"text":"hi"}`))
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/best_similarity", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got chiTransport.BestCandidate
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "a" || got.GeminiSimilarity != 0.9 {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestRouter_HealthExemptFromAuth(t *testing.T) {
	rr := httptest.NewRecorder()
	testRouter([]string{"secret"}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	testRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "vecrank ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestQueryCommand_RequiresText(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"query"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected missing --text error")
	}
}
