package vecrank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/db"
	dbQdrant "github.com/kailas-cloud/vecrank/internal/db/qdrant"
	dbValkey "github.com/kailas-cloud/vecrank/internal/db/valkey"
	dbWeaviate "github.com/kailas-cloud/vecrank/internal/db/weaviate"
	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/candidate"
	"github.com/kailas-cloud/vecrank/internal/domain/rerank/request"
	candidaterepo "github.com/kailas-cloud/vecrank/internal/repository/candidate"
	geminiEmb "github.com/kailas-cloud/vecrank/internal/transport/gemini"
	openaiEmb "github.com/kailas-cloud/vecrank/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecrank/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/vecrank/internal/usecase/rerank"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultTimeout          = 10 * time.Second
	defaultCollection       = "Document"
	defaultTextField        = "text"
	defaultVectorField      = "vector"
	defaultQdrantPort       = 6334
)

// Внутренний интерфейс для подмены в тестах.
type rerankUseCase interface {
	BestSimilarity(ctx context.Context, req request.Request) (candidate.Result, error)
}

// Client is the vecrank SDK entry point.
type Client struct {
	index     db.Index
	rerankSvc rerankUseCase
	healthSvc healthUseCase
	maxTopK   int
	obs       *observer
}

// New creates a vecrank Client and connects to the vector index.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	applyDefaults(cfg)

	if cfg.driver == "" {
		return nil, errors.New("vecrank: vector index required (use WithWeaviate, WithValkey, WithRedis or WithQdrant)")
	}

	domEmb, err := createEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	index, err := createIndex(cfg)
	if err != nil {
		return nil, err
	}

	if err := db.WaitForReady(ctx, index, defaultReadinessTimeout); err != nil {
		index.Close()
		return nil, fmt.Errorf("vecrank: vector index not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		index.Close()
		return nil, err
	}
	return wireClient(index, domEmb, cfg, obs), nil
}

func applyDefaults(cfg *clientConfig) {
	if cfg.collection == "" {
		cfg.collection = defaultCollection
	}
	if cfg.textField == "" {
		cfg.textField = defaultTextField
	}
	if cfg.port == 0 {
		cfg.port = defaultQdrantPort
	}
	if cfg.metric == "" {
		cfg.metric = string(dbQdrant.MetricCosine)
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = rerankuc.DefaultConcurrency
	}
	if cfg.maxTopK <= 0 {
		cfg.maxTopK = request.MaxTopK
	}
	if cfg.embedTimeout <= 0 {
		cfg.embedTimeout = defaultTimeout
	}
	if cfg.indexTimeout <= 0 {
		cfg.indexTimeout = defaultTimeout
	}
}

func createIndex(cfg *clientConfig) (db.Index, error) {
	switch cfg.driver {
	case "weaviate":
		s, err := dbWeaviate.NewStore(dbWeaviate.Config{
			URL:     cfg.url,
			APIKey:  cfg.apiKey,
			Timeout: cfg.indexTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("vecrank: create weaviate store: %w", err)
		}
		return s, nil
	case "valkey", "redis":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:       cfg.addrs,
			Password:    cfg.password,
			VectorField: defaultVectorField,
		})
		if err != nil {
			return nil, fmt.Errorf("vecrank: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "qdrant":
		s, err := dbQdrant.NewStore(dbQdrant.Config{
			Host:   cfg.host,
			Port:   cfg.port,
			APIKey: cfg.apiKey,
			UseTLS: cfg.useTLS,
			Metric: dbQdrant.Metric(cfg.metric),
		})
		if err != nil {
			return nil, fmt.Errorf("vecrank: create qdrant store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("vecrank: unknown driver %q", cfg.driver)
	}
}

func createEmbedder(cfg *clientConfig) (domain.Embedder, error) {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}, nil
	}
	switch cfg.provider {
	case "gemini":
		e, err := geminiEmb.NewEmbedder(&geminiEmb.Config{
			APIKey:     cfg.providerKey,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			HTTPClient: &http.Client{},
		})
		if err != nil {
			return nil, fmt.Errorf("vecrank: create gemini embedder: %w", err)
		}
		return e, nil
	case "openai":
		if cfg.model == "" {
			return nil, errors.New("vecrank: openai embedder requires a model")
		}
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.providerKey,
			BaseURL:    cfg.providerURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
		}), nil
	case "":
		return nil, errors.New("vecrank: embedder required (use WithGemini, WithOpenAI or WithEmbedder)")
	default:
		return nil, fmt.Errorf("vecrank: unknown embedding provider %q", cfg.provider)
	}
}

func wireClient(index db.Index, domEmb domain.Embedder, cfg *clientConfig, obs *observer) *Client {
	provider := cfg.provider
	if cfg.embedder != nil {
		provider = "custom"
	}
	emb := embeddinguc.NewInstrumentedEmbedder(domEmb, provider, cfg.model, cfg.embedTimeout, zap.NewNop())

	candidates := candidaterepo.New(index, candidaterepo.Config{
		Collection: cfg.collection,
		TextField:  cfg.textField,
		Driver:     cfg.driver,
		Timeout:    cfg.indexTimeout,
	})

	return &Client{
		index:     index,
		rerankSvc: rerankuc.New(candidates, emb, cfg.concurrency, zap.NewNop()),
		healthSvc: healthuc.New(index, emb, cfg.indexTimeout),
		maxTopK:   cfg.maxTopK,
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.index != nil {
		c.index.Close()
	}
}

// Ping checks vector index connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.index.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// BestSimilarity returns the candidate among the topK nearest index hits
// whose embedding is most similar to the embedding of text.
func (c *Client) BestSimilarity(ctx context.Context, text string, topK int) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("best_similarity", start, err) }()

	req, err := request.New(text, topK, c.maxTopK)
	if err != nil {
		return Result{}, fmt.Errorf("best similarity: %w", err)
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	best, err := c.rerankSvc.BestSimilarity(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("best similarity: %w", err)
	}
	return Result{
		ID:              best.ID,
		Text:            best.Text,
		Distance:        best.Distance,
		Similarity:      best.Similarity,
		EmbeddingCalls:  usage.Calls(),
		EmbeddingTokens: usage.TotalTokens(),
	}, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
