package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/metrics"
	"github.com/kailas-cloud/equidex/internal/transport/schema"
)

const providerName = "ollama"

// DefaultBaseURL is the local Ollama server address.
const DefaultBaseURL = "http://localhost:11434"

// Config holds local Ollama server settings.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

func newLLM(cfg Config, extra ...ollama.Option) (*ollama.LLM, error) {
	opts := append([]ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithHTTPClient(cfg.HTTPClient),
	}, extra...)
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init ollama %s: %w", cfg.Model, err)
	}
	return llm, nil
}

// healthCheck lists local models; a reachable server is healthy.
func healthCheck(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health: status %d", resp.StatusCode)
	}
	return nil
}

// Embedder embeds text with a local Ollama model. Ollama reports no embedding
// token usage, so results carry zero tokens.
type Embedder struct {
	llm    *ollama.LLM
	cfg    Config
	logger *zap.Logger
}

// NewEmbedder creates an Ollama embedder.
func NewEmbedder(cfg Config) (*Embedder, error) {
	cfg.defaults()
	llm, err := newLLM(cfg)
	if err != nil {
		return nil, err
	}
	return &Embedder{llm: llm, cfg: cfg, logger: cfg.Logger}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	vecs, err := e.llm.CreateEmbedding(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.cfg.Model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.cfg.Model, "api_error").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("ollama embed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(vecs) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.cfg.Model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.cfg.Model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("got %d embeddings for %d inputs: %w",
			len(vecs), len(texts), domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.cfg.Model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.cfg.Model).Observe(duration.Seconds())
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

// HealthCheck implements domain.HealthChecker.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, e.cfg.HTTPClient, e.cfg.BaseURL)
}

// Generator produces structured responses with a local Ollama chat model in JSON mode.
type Generator struct {
	llm    *ollama.LLM
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates an Ollama generator.
func NewGenerator(cfg Config) (*Generator, error) {
	cfg.defaults()
	llm, err := newLLM(cfg, ollama.WithFormat("json"))
	if err != nil {
		return nil, err
	}
	return &Generator{llm: llm, cfg: cfg, logger: cfg.Logger}, nil
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	instruction, err := schema.Instruction(req.Shape)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System+instruction),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}
	var opts []llms.CallOption
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if g.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.cfg.Temperature))
	}

	model := g.cfg.Model
	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, messages, opts...)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, model, "error").Inc()
		return domain.GenerationResult{}, fmt.Errorf("ollama generate: %v: %w", err, domain.ErrGenerationProviderError)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, model, "error").Inc()
		return domain.GenerationResult{}, fmt.Errorf("ollama returned no choices: %w", domain.ErrGenerationProviderError)
	}

	choice := resp.Choices[0]
	usage := domain.GenerationResult{
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
	}
	metrics.GenerationRequestDuration.WithLabelValues(providerName, model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(providerName, model, "prompt").Add(float64(usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(providerName, model, "completion").Add(float64(usage.CompletionTokens))

	if err := domain.DecodeShape(choice.Content, req.Shape); err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, model, "invalid").Inc()
		return usage, err
	}

	metrics.GenerationRequestsTotal.WithLabelValues(providerName, model, "success").Inc()
	return usage, nil
}

// HealthCheck implements domain.HealthChecker.
func (g *Generator) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, g.cfg.HTTPClient, g.cfg.BaseURL)
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
