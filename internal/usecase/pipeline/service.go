package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	"github.com/kailas-cloud/equidex/internal/domain/fragment"
	domreport "github.com/kailas-cloud/equidex/internal/domain/report"
	"github.com/kailas-cloud/equidex/internal/index"
	"github.com/kailas-cloud/equidex/internal/logger"
	"github.com/kailas-cloud/equidex/internal/usecase/orchestrator"
	"github.com/kailas-cloud/equidex/internal/usecase/retrieval"
)

// Request is one end-to-end analysis over caller-supplied documents.
// Zero TokenBudget and TopK keep the orchestrator's configured values.
type Request struct {
	Company     string
	Set         agent.Set
	Documents   []document.Document
	TokenBudget int
	TopK        int
	Report      bool
}

// CorpusStats counts fragments per category.
type CorpusStats struct {
	Text    int `json:"text"`
	Table   int `json:"table"`
	Article int `json:"article"`
}

// Result is the outcome of Analyze. Report is nil unless requested and composed.
// ReportErr holds a report failure; the run itself is still returned.
type Result struct {
	Run       analysis.Run
	Corpus    CorpusStats
	Report    *domreport.Report
	ReportErr error
	Usage     domain.UsageSnapshot
}

// Service wires ingestion, indexing, retrieval and orchestration for one request.
type Service struct {
	ingester     Ingester
	queries      Embedder
	orchestrator *orchestrator.Service
	reporter     Reporter
	logger       *zap.Logger
}

// New creates a pipeline. reporter may be nil, in which case report requests are rejected.
func New(ing Ingester, queries Embedder, orch *orchestrator.Service, reporter Reporter, log *zap.Logger) *Service {
	return &Service{
		ingester:     ing,
		queries:      queries,
		orchestrator: orch,
		reporter:     reporter,
		logger:       log,
	}
}

// Agents returns the agents of set from the orchestrator's registry.
func (s *Service) Agents(set agent.Set) ([]agent.Agent, error) {
	return s.orchestrator.Registry().Select(set)
}

// Analyze ingests req.Documents, runs the agent set against the fresh corpus
// and optionally composes the integrated report.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Company) == "" {
		return Result{}, fmt.Errorf("%w: company is required", domain.ErrInvalidRequest)
	}
	if req.Report && s.reporter == nil {
		return Result{}, fmt.Errorf("%w: report integration is not configured", domain.ErrInvalidRequest)
	}
	if req.Set == "" {
		req.Set = agent.SetPrimary
	}
	ctx, usage := s.usage(ctx)
	ctx = logger.With(ctx, s.logger, zap.String("company", req.Company))

	corpus, err := s.ingester.Build(ctx, req.Documents)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	opts := []orchestrator.Option{orchestrator.WithRetriever(s.retriever(corpus))}
	if req.TokenBudget > 0 {
		opts = append(opts, orchestrator.WithTokenBudget(req.TokenBudget))
	}
	if req.TopK > 0 {
		opts = append(opts, orchestrator.WithTopK(req.TopK))
	}
	run, err := s.orchestrator.With(opts...).Analyze(ctx, req.Set)
	if err != nil {
		return Result{Run: run, Corpus: statsOf(corpus), Usage: usage.Snapshot()}, err
	}

	res := Result{Run: run, Corpus: statsOf(corpus)}
	if req.Report {
		rep, err := s.reporter.Compose(ctx, req.Company, run.Results, tablesOf(req.Documents))
		if err != nil {
			logger.FromContextOr(ctx, s.logger).Warn("Report integration failed", zap.Error(err))
			res.ReportErr = err
		} else {
			res.Report = &rep
		}
	}
	res.Usage = usage.Snapshot()
	return res, nil
}

// Retrieve ingests docs and returns the scored matches for query per category.
func (s *Service) Retrieve(
	ctx context.Context, docs []document.Document, query string, k int,
) ([]retrieval.CategoryMatches, domain.UsageSnapshot, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.UsageSnapshot{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	ctx, usage := s.usage(ctx)

	corpus, err := s.ingester.Build(ctx, docs)
	if err != nil {
		return nil, domain.UsageSnapshot{}, fmt.Errorf("ingest: %w", err)
	}
	groups, err := s.retriever(corpus).RetrieveMatches(ctx, query, k)
	if err != nil {
		return nil, domain.UsageSnapshot{}, err
	}
	return groups, usage.Snapshot(), nil
}

func (s *Service) retriever(corpus *fragment.Corpus) *retrieval.Service {
	return retrieval.New(index.NewFlat(corpus), s.queries, s.logger)
}

// usage reuses the caller's collector when there is one.
func (s *Service) usage(ctx context.Context) (context.Context, *domain.Usage) {
	if u := domain.UsageFromContext(ctx); u != nil {
		return ctx, u
	}
	return domain.NewContextWithUsage(ctx)
}

func statsOf(c *fragment.Corpus) CorpusStats {
	return CorpusStats{
		Text:    c.Count(fragment.Text),
		Table:   c.Count(fragment.Table),
		Article: c.Count(fragment.Article),
	}
}

func tablesOf(docs []document.Document) []document.Table {
	var out []document.Table
	for _, d := range docs {
		out = append(out, d.Tables...)
	}
	return out
}
