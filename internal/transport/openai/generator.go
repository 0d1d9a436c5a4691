package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/metrics"
	"github.com/kailas-cloud/equidex/internal/transport/schema"
)

// Generator is a structured chat-completion provider over the OpenAI-compatible API.
// The response format is a JSON schema derived from the request shape's Go type.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	strict      bool
	provider    string
	logger      *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithStrictSchema asks the provider to enforce the schema exactly.
// Every field of the shape must then be required.
func WithStrictSchema(strict bool) GeneratorOption {
	return func(g *Generator) { g.strict = strict }
}

// NewGenerator creates an OpenAI-compatible generation provider.
func NewGenerator(cfg *Config, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	format, err := responseFormat(req.Shape, g.strict)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature:    g.temperature,
		ResponseFormat: format,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrGenerationProviderError)
	}

	usage := domain.GenerationResult{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "completion").Add(float64(usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return usage, fmt.Errorf("no choices in response: %w", domain.ErrGenerationProviderError)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		g.logger.Warn("Generation truncated at max tokens",
			zap.String("shape", req.Shape.Name),
			zap.Int("max_tokens", req.MaxTokens),
		)
	}

	if err := domain.DecodeShape(choice.Message.Content, req.Shape); err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "invalid").Inc()
		return usage, err
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	return usage, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func responseFormat(shape domain.Shape, strict bool) (*openai.ChatCompletionResponseFormat, error) {
	def, err := schema.For(shape)
	if err != nil {
		return nil, err
	}

	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   shape.Name,
			Schema: def,
			Strict: strict,
		},
	}, nil
}
