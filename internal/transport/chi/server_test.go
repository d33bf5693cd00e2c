package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/candidate"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/request"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
)

// --- Mocks ---

type mockReranker struct {
	result candidate.Result
	err    error
	tokens int
	got    *request.Request
}

func (m *mockReranker) BestSimilarity(ctx context.Context, req request.Request) (candidate.Result, error) {
	m.got = &req
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).Add(m.tokens)
	}
	return m.result, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(rr *mockReranker, h *mockHealth) http.Handler {
	if h == nil {
		h = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	srv := NewServer(rr, h, Limits{DefaultTopK: 5, MaxTopK: 10}, zap.NewNop())
	r := gochi.NewRouter()
	srv.Register(r)
	return r
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/best_similarity", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Detail
}

// --- Tests ---

func TestBestSimilarity_OK(t *testing.T) {
	m := &mockReranker{result: candidate.Result{ID: "doc-1", Text: "hello", Distance: 0.1235, Similarity: 0.9}}
	rr := post(t, newTestRouter(m, nil), `{"text":"hi"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if m.got.Text() != "hi" || m.got.TopK() != 5 {
		t.Errorf("unexpected request: text=%q top_k=%d", m.got.Text(), m.got.TopK())
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"id":                "doc-1",
		"text":              "hello",
		"weaviate_distance": 0.1235,
		"gemini_similarity": 0.9,
	}
	for k, v := range want {
		if resp[k] != v {
			t.Errorf("%s = %v, want %v", k, resp[k], v)
		}
	}
	if len(resp) != len(want) {
		t.Errorf("unexpected fields: %v", resp)
	}
}

func TestBestSimilarity_ExplicitTopK(t *testing.T) {
	m := &mockReranker{}
	rr := post(t, newTestRouter(m, nil), `{"text":"hi","top_k":3}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if m.got.TopK() != 3 {
		t.Errorf("top_k = %d, want 3", m.got.TopK())
	}
}

func TestBestSimilarity_EmptyTextAllowed(t *testing.T) {
	m := &mockReranker{}
	rr := post(t, newTestRouter(m, nil), `{"text":""}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if m.got == nil || m.got.Text() != "" {
		t.Error("empty text should reach the service")
	}
}

func TestBestSimilarity_Unprocessable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"text":`},
		{"missing text", `{"top_k":2}`},
		{"wrong type", `{"text":42}`},
		{"zero top_k", `{"text":"hi","top_k":0}`},
		{"negative top_k", `{"text":"hi","top_k":-1}`},
		{"top_k above max", `{"text":"hi","top_k":11}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &mockReranker{}
			rr := post(t, newTestRouter(m, nil), tc.body)

			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rr.Code)
			}
			if decodeDetail(t, rr) == "" {
				t.Error("expected non-empty detail")
			}
			if m.got != nil {
				t.Error("service must not be called for invalid input")
			}
		})
	}
}

func TestBestSimilarity_PipelineErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"embedding", domain.NewRemoteServiceError(domain.ServiceEmbedding, "embed", errors.New("non-success status 400: API key not valid"))},
		{"index", domain.NewRemoteServiceError(domain.ServiceVectorIndex, "search", errors.New("graphql: Cannot query field"))},
		{"empty", domain.ErrEmptyResult},
		{"dimension", domain.ErrVectorDimMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, newTestRouter(&mockReranker{err: tc.err}, nil), `{"text":"hi"}`)

			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rr.Code)
			}
			if got := decodeDetail(t, rr); got != tc.err.Error() {
				t.Errorf("detail = %q, want %q", got, tc.err.Error())
			}
		})
	}
}

func TestBestSimilarity_EmbeddingHeaders(t *testing.T) {
	m := &mockReranker{tokens: 12}
	rr := post(t, newTestRouter(m, nil), `{"text":"hi"}`)

	if rr.Header().Get("X-Embedding-Calls") != "1" {
		t.Errorf("X-Embedding-Calls = %q", rr.Header().Get("X-Embedding-Calls"))
	}
	if rr.Header().Get("X-Embedding-Tokens") != "12" {
		t.Errorf("X-Embedding-Tokens = %q", rr.Header().Get("X-Embedding-Tokens"))
	}

	rr = post(t, newTestRouter(&mockReranker{}, nil), `{"text":"hi"}`)
	if rr.Header().Get("X-Embedding-Calls") != "" {
		t.Error("no usage headers expected without embedding calls")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		report     healthuc.Report
		wantStatus int
	}{
		{"healthy", healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"vector_index": healthuc.CheckOK},
		}, http.StatusOK},
		{"degraded", healthuc.Report{
			Status: healthuc.Degraded,
			Checks: map[string]healthuc.CheckResult{"vector_index": healthuc.CheckError},
			Errors: map[string]string{"vector_index": "connection refused"},
		}, http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(&mockReranker{}, &mockHealth{report: tc.report})
			req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tc.report.Status) {
				t.Errorf("status = %q", resp.Status)
			}
			if resp.Checks["vector_index"] != string(tc.report.Checks["vector_index"]) {
				t.Errorf("checks = %v", resp.Checks)
			}
			if strings.Contains(rr.Body.String(), "connection refused") {
				t.Error("health body must not expose error details")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(&mockReranker{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected default Go collector metrics")
	}
}

func TestNewServer_DefaultLimits(t *testing.T) {
	srv := NewServer(&mockReranker{}, &mockHealth{}, Limits{}, zap.NewNop())
	if srv.limits.DefaultTopK != request.DefaultTopK || srv.limits.MaxTopK != request.MaxTopK {
		t.Errorf("unexpected limits: %+v", srv.limits)
	}
}
