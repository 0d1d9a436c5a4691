package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	domreport "github.com/kailas-cloud/equidex/internal/domain/report"
	"github.com/kailas-cloud/equidex/internal/logger"
)

// ShapeName is the structured response name of the integrated report.
const ShapeName = "equity_report"

// Service integrates a run's analyses into one structured report.
type Service struct {
	generator   Generator
	agent       agent.Agent
	tokenBudget int
	maxTokens   int
	logger      *zap.Logger
}

// New creates a report service. tokenBudget and maxTokens may be 0.
func New(gen Generator, tokenBudget, maxTokens int, log *zap.Logger) *Service {
	return &Service{
		generator:   gen,
		agent:       agent.ReportIntegration(),
		tokenBudget: tokenBudget,
		maxTokens:   maxTokens,
		logger:      log,
	}
}

// Compose asks the integration agent for a report over results and tables.
// A run with no analyses at all is rejected without a provider call.
func (s *Service) Compose(
	ctx context.Context, company string, results []analysis.Result, tables []document.Table,
) (domreport.Report, error) {
	present := 0
	for _, r := range results {
		if r.Present() {
			present++
		}
	}
	if present == 0 {
		return domreport.Report{}, fmt.Errorf("%w: no analyses to integrate", domain.ErrInvalidRequest)
	}

	prompt, err := s.agent.Render([]string{BuildPrompt(company, results, tables)}, s.tokenBudget)
	if err != nil {
		return domreport.Report{}, fmt.Errorf("render report prompt: %w", err)
	}

	start := time.Now()
	var rep domreport.Report
	usage, err := s.generator.Generate(ctx, domain.GenerationRequest{
		System:    prompt.System,
		User:      prompt.User,
		Shape:     domain.Shape{Name: ShapeName, Target: &rep},
		MaxTokens: s.maxTokens,
	})
	domain.UsageFromContext(ctx).AddGeneration(usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		return domreport.Report{}, fmt.Errorf("generate report: %w", err)
	}
	if err := rep.Validate(); err != nil {
		return domreport.Report{}, fmt.Errorf("generate report: %w: %w", domain.ErrInvalidResponse, err)
	}

	logger.FromContextOr(ctx, s.logger).Info("Report composed",
		zap.String("company", company),
		zap.Int("sections", len(rep.Sections)),
		zap.Int("analyses", present),
		zap.Duration("duration", time.Since(start)),
	)
	return rep, nil
}
