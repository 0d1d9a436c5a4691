package equidex

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
	embedder  Embedder
	generator Generator

	concurrency  int
	taskTimeout  time.Duration
	tokenBudget  int
	topK         int
	maxTokens    int
	chunkSize    int
	chunkOverlap int

	cacheSize int
	redisAddr string
	redisPass string
	cacheTTL  time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets the generation provider. Required.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithConcurrency bounds the number of agents running at once. Default: 4.
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithTaskTimeout bounds each agent's retrieval and generation. Zero disables it.
func WithTaskTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.taskTimeout = d
	})
}

// WithTokenBudget sets the default budget rendered into agent instructions.
func WithTokenBudget(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.tokenBudget = n
	})
}

// WithTopK sets the default number of fragments retrieved per category. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithMaxTokens caps the completion length of each generation call.
func WithMaxTokens(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTokens = n
	})
}

// WithChunking sets the text chunk size and overlap in characters. Default: 4000, no overlap.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithMemoryCache caches embeddings in an in-process LRU of the given size.
func WithMemoryCache(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = size
		c.redisAddr = ""
	})
}

// WithRedisCache caches embeddings in a Redis instance.
func WithRedisCache(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddr = addr
		c.redisPass = password
		c.cacheSize = 0
	})
}

// WithCacheTTL expires cached embeddings after ttl. Zero keeps them until evicted.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
