// Package gemini implements domain.Embedder over the Gemini embedContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/metrics"
)

const (
	// DefaultBaseURL is the public Generative Language API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "models/embedding-001"

	providerName = "gemini"
	maxErrorBody = 512
)

// Compile-time checks.
var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// Config holds the Gemini provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	// Model accepts both "embedding-001" and "models/embedding-001".
	Model string
	// TaskType is forwarded as taskType when set (e.g. SEMANTIC_SIMILARITY).
	TaskType string
	// Dimensions is forwarded as outputDimensionality when positive.
	Dimensions int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Embedder calls models/{model}:embedContent once per Embed.
type Embedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	taskType   string
	dimensions int
	logger     *zap.Logger
}

// NewEmbedder creates a Gemini embedding provider.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse gemini base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gemini base url must be absolute, got %q", base)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     client,
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     cfg.APIKey,
		model:      normalizeModel(cfg.Model),
		taskType:   cfg.TaskType,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	values, err := e.embedContent(ctx, text)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.model, errorType(err)).Inc()
		return domain.EmbeddingResult{}, domain.NewRemoteServiceError(domain.ServiceEmbedding, "embed", err)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.model).Observe(duration.Seconds())

	return domain.EmbeddingResult{Embedding: values}, nil
}

// HealthCheck fetches the model metadata (GET models/{model}).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint(""), http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("get model: %w", redactKey(err, e.apiKey))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("get model: %w", apiError(resp.StatusCode, raw))
	}
	return nil
}

type embedRequest struct {
	Model                string       `json:"model"`
	Content              embedContent `json:"content"`
	TaskType             string       `json:"taskType,omitempty"`
	OutputDimensionality int          `json:"outputDimensionality,omitempty"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

var (
	errTransport = errors.New("transport error")
	errStatus    = errors.New("non-success status")
	errPayload   = errors.New("malformed response")
)

func (e *Embedder) embedContent(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:                e.model,
		Content:              embedContent{Parts: []embedPart{{Text: text}}},
		TaskType:             e.taskType,
		OutputDimensionality: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(":embedContent"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTransport, redactKey(err, e.apiKey))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", errTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Debug("gemini embedContent failed",
			zap.Int("status", resp.StatusCode),
			zap.String("model", e.model),
		)
		return nil, apiError(resp.StatusCode, raw)
	}

	return parseValues(raw)
}

// endpoint builds {base}/{model}{suffix}?key=...
func (e *Embedder) endpoint(suffix string) string {
	u := e.baseURL + "/" + e.model + suffix
	if e.apiKey == "" {
		return u
	}
	return u + "?key=" + url.QueryEscape(e.apiKey)
}

// parseValues reads embedding.values. A missing or empty array is a malformed payload.
func parseValues(raw []byte) ([]float32, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", errPayload)
	}
	values := gjson.GetBytes(raw, "embedding.values")
	if !values.IsArray() {
		return nil, fmt.Errorf("%w: missing embedding.values", errPayload)
	}

	items := values.Array()
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", errPayload)
	}

	vec := make([]float32, len(items))
	for i, v := range items {
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("%w: embedding.values[%d] is not a number", errPayload, i)
		}
		vec[i] = float32(v.Float())
	}
	return vec, nil
}

// apiError turns {"error":{"code","message","status"}} into an error.
func apiError(status int, raw []byte) error {
	msg := gjson.GetBytes(raw, "error.message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%w %d: %s", errStatus, status, msg)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errTransport):
		return "transport"
	case errors.Is(err, errStatus):
		return "api_error"
	case errors.Is(err, errPayload):
		return "empty_response"
	default:
		return "unknown"
	}
}

// redactKey strips the API key from url.Error messages, which quote the full URL.
func redactKey(err error, key string) error {
	var uerr *url.Error
	if key == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, url.QueryEscape(key), "REDACTED"),
		Err: uerr.Err,
	}
}

func normalizeModel(model string) string {
	if model == "" {
		return DefaultModel
	}
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}
