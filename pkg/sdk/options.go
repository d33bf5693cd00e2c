package vecrank

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "weaviate", "valkey", "redis" or "qdrant"
	url       string
	addrs     []string
	password  string
	apiKey    string
	host      string
	port      int
	useTLS    bool
	metric    string
	textField string

	collection string

	embedder     Embedder
	provider     string // "gemini" or "openai" for the built-in providers
	providerKey  string
	providerURL  string
	model        string
	dimensions   int
	embedTimeout time.Duration

	concurrency  int
	maxTopK      int
	indexTimeout time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithWeaviate searches a Weaviate instance. An empty apiKey selects anonymous access.
func WithWeaviate(url, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "weaviate"
		c.url = url
		c.apiKey = apiKey
	})
}

// WithValkey searches a valkey-search FT index.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis searches a Redis Query Engine FT index.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithQdrant searches a Qdrant collection over gRPC.
func WithQdrant(host string, port int, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "qdrant"
		c.host = host
		c.port = port
		c.apiKey = apiKey
	})
}

// WithQdrantTLS enables TLS on the Qdrant connection.
func WithQdrantTLS() Option {
	return optionFunc(func(c *clientConfig) {
		c.useTLS = true
	})
}

// WithQdrantMetric sets the collection distance metric used to turn scores into distances.
// Defaults to cosine.
func WithQdrantMetric(metric string) Option {
	return optionFunc(func(c *clientConfig) {
		c.metric = metric
	})
}

// WithCollection names the Weaviate class, FT index or Qdrant collection. Defaults to "Document".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithTextField names the stored property holding candidate text. Defaults to "text".
func WithTextField(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.textField = name
	})
}

// WithEmbedder sets a custom embedding provider. It takes precedence over WithGemini and WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGemini uses the Gemini embedContent API. An empty model selects models/embedding-001.
func WithGemini(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = "gemini"
		c.providerKey = apiKey
		c.model = model
	})
}

// WithOpenAI uses an OpenAI-compatible embeddings endpoint. An empty baseURL selects api.openai.com.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = "openai"
		c.providerKey = apiKey
		c.providerURL = baseURL
		c.model = model
	})
}

// WithDimensions requests a reduced embedding size from the built-in providers.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithConcurrency caps simultaneous candidate embedding calls. Default: 4.
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithMaxTopK sets the largest accepted top_k. Default: 100.
func WithMaxTopK(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTopK = n
	})
}

// WithTimeouts bounds each embedding call and each index search. Default: 10s each.
func WithTimeouts(embed, index time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTimeout = embed
		c.indexTimeout = index
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
