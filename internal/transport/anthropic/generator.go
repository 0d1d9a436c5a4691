package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/metrics"
	"github.com/kailas-cloud/equidex/internal/transport/schema"
)

const (
	providerName     = "anthropic"
	defaultMaxTokens = 4096
)

// Config holds Anthropic provider settings.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for tests against a mock server
	Model       string
	Temperature float64
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Generator implements domain.Generator on the Anthropic Messages API.
// The shape's schema travels in the system prompt since Messages has no response format.
type Generator struct {
	client      anthropicsdk.Client
	model       string
	temperature float64
	logger      *zap.Logger
}

// NewGenerator creates an Anthropic generator. Returns an error if the API key is missing.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: missing api_key in config")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic: missing model in config")
	}

	// Retries belong to the shared HTTP client, not the SDK.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Generator{
		client:      anthropicsdk.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      log,
	}, nil
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	instruction, err := schema.Instruction(req.Shape)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(g.model),
		MaxTokens: maxTokens,
		System:    []anthropicsdk.TextBlockParam{{Text: req.System + instruction}},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.User)),
		},
	}
	if g.temperature > 0 {
		params.Temperature = anthropicsdk.Float(g.temperature)
	}

	start := time.Now()
	msg, err := g.client.Messages.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, g.model, "error").Inc()
		return domain.GenerationResult{}, parseAPIError(err)
	}

	usage := domain.GenerationResult{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}
	metrics.GenerationRequestDuration.WithLabelValues(providerName, g.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(providerName, g.model, "prompt").Add(float64(usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(providerName, g.model, "completion").Add(float64(usage.CompletionTokens))

	if msg.StopReason == anthropicsdk.StopReasonMaxTokens {
		g.logger.Warn("Generation truncated at max tokens",
			zap.String("shape", req.Shape.Name),
			zap.Int64("max_tokens", maxTokens),
		)
	}

	if err := domain.DecodeShape(textOf(msg), req.Shape); err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, g.model, "invalid").Inc()
		return usage, err
	}

	metrics.GenerationRequestsTotal.WithLabelValues(providerName, g.model, "success").Inc()
	return usage, nil
}

// HealthCheck verifies the API key and connectivity via the free models endpoint.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.Models.List(ctx, anthropicsdk.ModelListParams{}); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func textOf(msg *anthropicsdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func parseAPIError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("generation API error %d: %v: %w", apiErr.StatusCode, err, domain.ErrGenerationProviderError)
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, wrapped)
		}
		return wrapped
	}
	return fmt.Errorf("generation request failed: %v: %w", err, domain.ErrGenerationProviderError)
}
