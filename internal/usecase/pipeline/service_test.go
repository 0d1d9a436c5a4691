package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	"github.com/kailas-cloud/equidex/internal/domain/fragment"
	domreport "github.com/kailas-cloud/equidex/internal/domain/report"
	"github.com/kailas-cloud/equidex/internal/metrics"
	"github.com/kailas-cloud/equidex/internal/usecase/orchestrator"
)

func TestMain(m *testing.M) {
	metrics.RegisterAgentMetrics()
	os.Exit(m.Run())
}

// fakeIngester builds one text fragment per document name.
type fakeIngester struct {
	err  error
	docs []document.Document
}

func (f *fakeIngester) Build(_ context.Context, docs []document.Document) (*fragment.Corpus, error) {
	f.docs = docs
	if f.err != nil {
		return nil, f.err
	}
	b := fragment.NewBuilder(0)
	for _, d := range docs {
		fr, err := fragment.New(d.Text, fragment.Text, []float32{1, 0})
		if err != nil {
			return nil, err
		}
		if err := b.Add(fr.WithSource(d.Name)); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	domain.UsageFromContext(ctx).AddEmbedding(2)
	return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 2}, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	f.mu.Lock()
	f.users = append(f.users, req.User)
	f.mu.Unlock()
	if err := domain.DecodeShape(`{"analysis": "fine"}`, req.Shape); err != nil {
		return domain.GenerationResult{}, err
	}
	return domain.GenerationResult{PromptTokens: 3, CompletionTokens: 1}, nil
}

type fakeReporter struct {
	err     error
	company string
	results []analysis.Result
	tables  []document.Table
}

func (f *fakeReporter) Compose(
	_ context.Context, company string, results []analysis.Result, tables []document.Table,
) (domreport.Report, error) {
	f.company, f.results, f.tables = company, results, tables
	if f.err != nil {
		return domreport.Report{}, f.err
	}
	return domreport.Report{Title: company, Sections: []domreport.Section{{Heading: "Summary"}}}, nil
}

func newService(ing Ingester, gen *fakeGenerator, rep Reporter) *Service {
	orch := orchestrator.New(nil, gen, zap.NewNop(), orchestrator.WithConcurrency(2))
	return New(ing, fakeEmbedder{}, orch, rep, zap.NewNop())
}

func docs() []document.Document {
	return []document.Document{{
		Name:   "10-K",
		Text:   "Revenue grew 12% year over year.",
		Tables: []document.Table{{Name: "income", Columns: []string{"year", "revenue"}, Rows: [][]string{{"2024", "10"}}}},
	}}
}

func TestAnalyze_RunsPrimarySetAgainstFreshCorpus(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(&fakeIngester{}, gen, nil)

	res, err := svc.Analyze(context.Background(), Request{Company: "ACME", Documents: docs()})
	require.NoError(t, err)

	assert.Equal(t, string(agent.SetPrimary), res.Run.Set)
	require.Len(t, res.Run.Results, len(agent.Primary()))
	for i, a := range agent.Primary() {
		assert.Equal(t, a.Name(), res.Run.Results[i].AgentName)
		assert.True(t, res.Run.Results[i].Present())
	}
	assert.Equal(t, CorpusStats{Text: 1}, res.Corpus)
	assert.Nil(t, res.Report)

	for _, u := range gen.users {
		assert.True(t, strings.Contains(u, "Revenue grew 12%"), "agent prompt must carry corpus context")
	}
	n := len(agent.Primary())
	assert.Equal(t, domain.UsageSnapshot{EmbeddingTokens: 2 * n, PromptTokens: 3 * n, CompletionTokens: n}, res.Usage)
}

func TestAnalyze_ComposesReportFromRunAndTables(t *testing.T) {
	rep := &fakeReporter{}
	svc := newService(&fakeIngester{}, &fakeGenerator{}, rep)

	res, err := svc.Analyze(context.Background(), Request{Company: "ACME", Set: agent.SetExtended, Documents: docs(), Report: true})
	require.NoError(t, err)

	require.NotNil(t, res.Report)
	assert.Equal(t, "ACME", res.Report.Title)
	assert.NoError(t, res.ReportErr)
	assert.Equal(t, "ACME", rep.company)
	assert.Len(t, rep.results, len(agent.Extended()))
	require.Len(t, rep.tables, 1)
	assert.Equal(t, "income", rep.tables[0].Name)
}

func TestAnalyze_ReportFailureKeepsRun(t *testing.T) {
	rep := &fakeReporter{err: domain.ErrGenerationProviderError}
	svc := newService(&fakeIngester{}, &fakeGenerator{}, rep)

	res, err := svc.Analyze(context.Background(), Request{Company: "ACME", Documents: docs(), Report: true})
	require.NoError(t, err)
	assert.Nil(t, res.Report)
	assert.ErrorIs(t, res.ReportErr, domain.ErrGenerationProviderError)
	assert.Len(t, res.Run.Results, len(agent.Primary()))
}

func TestAnalyze_Rejections(t *testing.T) {
	tests := []struct {
		name string
		svc  *Service
		req  Request
		want error
	}{
		{
			name: "missing company",
			svc:  newService(&fakeIngester{}, &fakeGenerator{}, nil),
			req:  Request{Documents: docs()},
			want: domain.ErrInvalidRequest,
		},
		{
			name: "report without reporter",
			svc:  newService(&fakeIngester{}, &fakeGenerator{}, nil),
			req:  Request{Company: "ACME", Documents: docs(), Report: true},
			want: domain.ErrInvalidRequest,
		},
		{
			name: "empty corpus",
			svc:  newService(&fakeIngester{err: domain.ErrEmptyCorpus}, &fakeGenerator{}, nil),
			req:  Request{Company: "ACME"},
			want: domain.ErrEmptyCorpus,
		},
		{
			name: "unknown set",
			svc:  newService(&fakeIngester{}, &fakeGenerator{}, nil),
			req:  Request{Company: "ACME", Set: "bogus", Documents: docs()},
			want: domain.ErrUnknownAgentSet,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Analyze(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRetrieve_ScoredMatches(t *testing.T) {
	svc := newService(&fakeIngester{}, &fakeGenerator{}, nil)

	groups, usage, err := svc.Retrieve(context.Background(), docs(), "revenue", 3)
	require.NoError(t, err)
	require.Len(t, groups, len(fragment.Categories()))
	assert.Equal(t, fragment.Text, groups[0].Category)
	require.Len(t, groups[0].Matches, 1)
	assert.Equal(t, "10-K", groups[0].Matches[0].Fragment.Source())
	assert.Empty(t, groups[1].Matches)
	assert.Equal(t, 2, usage.EmbeddingTokens)
}

func TestRetrieve_RequiresQuery(t *testing.T) {
	ing := &fakeIngester{}
	svc := newService(ing, &fakeGenerator{}, nil)

	_, _, err := svc.Retrieve(context.Background(), docs(), "  ", 3)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Nil(t, ing.docs, "ingest must not run for an invalid query")
}

func TestRetrieve_IngestError(t *testing.T) {
	boom := errors.New("boom")
	svc := newService(&fakeIngester{err: boom}, &fakeGenerator{}, nil)

	_, _, err := svc.Retrieve(context.Background(), docs(), "revenue", 3)
	require.ErrorIs(t, err, boom)
}
