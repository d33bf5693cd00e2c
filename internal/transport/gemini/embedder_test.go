package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

func newTestEmbedder(t *testing.T, url string, cfg Config) *Embedder {
	t.Helper()
	cfg.BaseURL = url
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	cfg.Logger = zap.NewNop()
	emb, err := NewEmbedder(&cfg)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	return emb
}

func TestEmbedder_Embed(t *testing.T) {
	var got embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/models/embedding-001:embedContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("unexpected key: %q", r.URL.Query().Get("key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer server.Close()

	emb := newTestEmbedder(t, server.URL, Config{Model: "embedding-001"})

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	want := []float32{0.1, 0.2, 0.3}
	if len(result.Embedding) != len(want) {
		t.Fatalf("expected %d dimensions, got %d", len(want), len(result.Embedding))
	}
	for i, v := range result.Embedding {
		if v != want[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, want[i])
		}
	}

	if got.Model != "models/embedding-001" {
		t.Errorf("model = %q, expected models/embedding-001", got.Model)
	}
	if len(got.Content.Parts) != 1 || got.Content.Parts[0].Text != "hello world" {
		t.Errorf("unexpected content: %+v", got.Content)
	}
	if got.TaskType != "" || got.OutputDimensionality != 0 {
		t.Errorf("optional fields should be omitted, got %+v", got)
	}
}

func TestEmbedder_ForwardsOptionalFields(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"embedding":{"values":[1]}}`))
	}))
	defer server.Close()

	emb := newTestEmbedder(t, server.URL, Config{TaskType: "SEMANTIC_SIMILARITY", Dimensions: 256})

	if _, err := emb.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if body["taskType"] != "SEMANTIC_SIMILARITY" {
		t.Errorf("taskType = %v", body["taskType"])
	}
	if body["outputDimensionality"] != float64(256) {
		t.Errorf("outputDimensionality = %v", body["outputDimensionality"])
	}
}

func TestEmbedder_EmptyTextPassedThrough(t *testing.T) {
	var got embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.5,0.5]}}`))
	}))
	defer server.Close()

	emb := newTestEmbedder(t, server.URL, Config{})
	if _, err := emb.Embed(context.Background(), ""); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(got.Content.Parts) != 1 || got.Content.Parts[0].Text != "" {
		t.Errorf("expected a single empty part, got %+v", got.Content)
	}
}

func TestEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api error", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, "API key not valid"},
		{"plain error body", http.StatusServiceUnavailable, `overloaded`, "overloaded"},
		{"missing values", http.StatusOK, `{"embedding":{}}`, "missing embedding.values"},
		{"empty values", http.StatusOK, `{"embedding":{"values":[]}}`, "empty embedding"},
		{"non numeric", http.StatusOK, `{"embedding":{"values":["a"]}}`, "not a number"},
		{"invalid json", http.StatusOK, `{`, "invalid JSON"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			emb := newTestEmbedder(t, server.URL, Config{})
			_, err := emb.Embed(context.Background(), "hello")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrRemoteService) {
				t.Errorf("expected ErrRemoteService, got %v", err)
			}
			var rse *domain.RemoteServiceError
			if !errors.As(err, &rse) || rse.Service != domain.ServiceEmbedding {
				t.Errorf("expected embedding RemoteServiceError, got %T", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestEmbedder_TransportErrorRedactsKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	emb := newTestEmbedder(t, addr, Config{APIKey: "secret-key"})
	_, err := emb.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Errorf("error leaks API key: %q", err.Error())
	}
}

func TestEmbedder_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	emb := newTestEmbedder(t, server.URL, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := emb.Embed(ctx, "hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models/embedding-001" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"model not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"models/embedding-001"}`))
	}))
	defer server.Close()

	if err := newTestEmbedder(t, server.URL, Config{}).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}

	err := newTestEmbedder(t, server.URL, Config{Model: "missing"}).HealthCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestNewEmbedder_RejectsRelativeURL(t *testing.T) {
	if _, err := NewEmbedder(&Config{BaseURL: "localhost/v1"}); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultModel},
		{"embedding-001", "models/embedding-001"},
		{"models/text-embedding-004", "models/text-embedding-004"},
	}
	for _, tc := range tests {
		if got := normalizeModel(tc.in); got != tc.want {
			t.Errorf("normalizeModel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{errTransport, "transport"},
		{errStatus, "api_error"},
		{errPayload, "empty_response"},
		{errors.New("x"), "unknown"},
	}
	for _, tc := range tests {
		if got := errorType(tc.err); got != tc.want {
			t.Errorf("errorType(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
