package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/config"
	"github.com/kailas-cloud/vecrank/internal/db"
	dbQdrant "github.com/kailas-cloud/vecrank/internal/db/qdrant"
	dbValkey "github.com/kailas-cloud/vecrank/internal/db/valkey"
	dbWeaviate "github.com/kailas-cloud/vecrank/internal/db/weaviate"
	"github.com/kailas-cloud/vecrank/internal/domain"
	logpkg "github.com/kailas-cloud/vecrank/internal/logger"
	"github.com/kailas-cloud/vecrank/internal/metrics"
	"github.com/kailas-cloud/vecrank/internal/observability"
	candidaterepo "github.com/kailas-cloud/vecrank/internal/repository/candidate"
	geminiEmb "github.com/kailas-cloud/vecrank/internal/transport/gemini"
	openaiEmb "github.com/kailas-cloud/vecrank/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecrank/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/vecrank/internal/usecase/rerank"
	"github.com/kailas-cloud/vecrank/internal/version"
)

// app is the composition root shared by serve and query.
type app struct {
	env      string
	cfg      config.Config
	logger   *zap.Logger
	index    db.Index
	embedder *embeddinguc.InstrumentedEmbedder
	rerank   *rerankuc.Service
	health   *healthuc.Service
	tracing  *observability.TracerProvider
}

func loadConfig(opts options) (config.Config, string, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return config.Config{}, "", fmt.Errorf("load dotenv: %w", err)
	}

	env := opts.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, env, nil
}

func newApp(ctx context.Context, opts options) (*app, error) {
	cfg, env, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "vecrank",
		ServiceVersion: version.Version,
		Environment:    env,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIndexMetrics()
	metrics.RegisterRerankMetrics()

	index, err := buildIndex(cfg.Index)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create vector index client: %w", err)
	}

	if err := db.WaitForReady(ctx, index, time.Duration(cfg.Index.ReadinessTimeout)*time.Second); err != nil {
		index.Close()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("vector index not ready: %w", err)
	}
	logger.Info("Connected to vector index",
		zap.String("driver", cfg.Index.Driver),
		zap.String("collection", cfg.Index.Collection),
	)

	base, err := buildEmbedder(cfg.Embedding, logger)
	if err != nil {
		index.Close()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	embedder := embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Timeout(), logger,
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
	)

	candidates := candidaterepo.New(index, candidaterepo.Config{
		Collection: cfg.Index.Collection,
		TextField:  cfg.Index.TextField,
		Driver:     cfg.Index.Driver,
		Timeout:    cfg.Index.Timeout(),
	})

	return &app{
		env:      env,
		cfg:      cfg,
		logger:   logger,
		index:    index,
		embedder: embedder,
		rerank:   rerankuc.New(candidates, embedder, cfg.Rerank.Concurrency, logger),
		health:   healthuc.New(index, embedder, cfg.Index.Timeout()),
		tracing:  tp,
	}, nil
}

func (a *app) close(ctx context.Context) {
	a.index.Close()
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn("Tracing shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// buildIndex selects the vector index driver.
func buildIndex(cfg config.IndexConfig) (db.Index, error) {
	switch cfg.Driver {
	case config.DriverWeaviate:
		return dbWeaviate.NewStore(dbWeaviate.Config{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout(),
		})
	case config.DriverValkey, config.DriverRedis:
		return dbValkey.NewStore(dbValkey.Config{
			Addrs:       cfg.Addrs,
			Username:    cfg.Username,
			Password:    cfg.Password,
			DB:          cfg.DB,
			VectorField: cfg.VectorField,
		})
	case config.DriverQdrant:
		return dbQdrant.NewStore(dbQdrant.Config{
			Host:   cfg.Host,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
			UseTLS: cfg.UseTLS,
			Metric: dbQdrant.Metric(cfg.Metric),
		})
	default:
		return nil, fmt.Errorf("unknown index driver %q", cfg.Driver)
	}
}

// buildEmbedder selects the embedding provider. Providers record transport metrics themselves.
func buildEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return geminiEmb.NewEmbedder(&geminiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			TaskType:   cfg.TaskType,
			Dimensions: cfg.Dimensions,
			HTTPClient: &http.Client{},
			Logger:     logger,
		})
	case config.ProviderOpenAI:
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			User:       cfg.User,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	default:
		return nil, errors.New("unknown embedding provider " + cfg.Provider)
	}
}
