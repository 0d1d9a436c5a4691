package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
)

type fakeGenerator struct {
	raw      string
	err      error
	noDecode bool
	req      domain.GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	f.req = req
	if f.err != nil {
		return domain.GenerationResult{}, f.err
	}
	if f.noDecode {
		return domain.GenerationResult{PromptTokens: 7}, nil
	}
	return domain.GenerationResult{PromptTokens: 7, CompletionTokens: 3}, domain.DecodeShape(f.raw, req.Shape)
}

var sampleResults = []analysis.Result{
	analysis.Success("Profitability Analysis Agent", "Margins fell to 17.9%."),
	analysis.Missing("Leverage Analysis Agent", analysis.StepTimeout, context.DeadlineExceeded),
}

var sampleTables = []document.Table{{
	Name: "Margins", Columns: []string{"Quarter", "GM"}, Rows: [][]string{{"Q2", "18.0%"}, {"Q3", "17.9%"}},
}}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("Tesla", sampleResults, sampleTables)
	want := "Equity Research Report Data\n\n" +
		"Company: Tesla\n\n" +
		"### Analyses ###\n" +
		"1. **Agent:** Profitability Analysis Agent\n" +
		"   **Analysis:** Margins fell to 17.9%.\n\n" +
		"2. **Agent:** Leverage Analysis Agent\n" +
		"   **Analysis:** unavailable\n\n" +
		"### Tables ###\n" +
		"**Table Name:** Margins\n" +
		"Columns: Quarter, GM\n" +
		"Rows:\n" +
		"  - Q2, 18.0%\n" +
		"  - Q3, 17.9%\n\n"
	assert.Equal(t, want, got)
}

func TestCompose(t *testing.T) {
	gen := &fakeGenerator{raw: `{"title":"Tesla Equity Research","sections":[` +
		`{"heading":"Profitability","content":"Margins compressed.","table_caption":"Gross margin",` +
		`"table":{"columns":["Quarter","GM"],"rows":[["Q3","17.9%"]]}}]}`}
	svc := New(gen, 800, 4096, zap.NewNop())
	ctx, usage := domain.NewContextWithUsage(context.Background())

	rep, err := svc.Compose(ctx, "Tesla", sampleResults, sampleTables)
	require.NoError(t, err)
	assert.Equal(t, "Tesla Equity Research", rep.Title)
	require.Len(t, rep.Sections, 1)
	require.NotNil(t, rep.Sections[0].Table)
	assert.Equal(t, []string{"Quarter", "GM"}, rep.Sections[0].Table.Columns)

	assert.Contains(t, gen.req.System, "maximum 800 tokens")
	assert.Contains(t, gen.req.User, "### Analyses ###")
	assert.Equal(t, 4096, gen.req.MaxTokens)
	assert.Equal(t, ShapeName, gen.req.Shape.Name)
	assert.Equal(t, 7, usage.Snapshot().PromptTokens)
}

func TestCompose_InvalidReport(t *testing.T) {
	svc := New(&fakeGenerator{raw: `{"title":"","sections":[]}`}, 0, 0, zap.NewNop())

	_, err := svc.Compose(context.Background(), "Tesla", sampleResults, nil)
	require.ErrorIs(t, err, domain.ErrInvalidResponse)
}

func TestCompose_UndecodedReportRejected(t *testing.T) {
	svc := New(&fakeGenerator{noDecode: true}, 0, 0, zap.NewNop())

	rep, err := svc.Compose(context.Background(), "Tesla", sampleResults, nil)
	require.ErrorIs(t, err, domain.ErrInvalidResponse)
	assert.Empty(t, rep.Title)
}

func TestCompose_ProviderError(t *testing.T) {
	svc := New(&fakeGenerator{err: errors.New("boom")}, 0, 0, zap.NewNop())

	_, err := svc.Compose(context.Background(), "Tesla", sampleResults, nil)
	require.Error(t, err)
}

func TestCompose_NoAnalyses(t *testing.T) {
	gen := &fakeGenerator{}
	svc := New(gen, 0, 0, zap.NewNop())

	_, err := svc.Compose(context.Background(), "Tesla", sampleResults[1:], nil)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, gen.req.System)
}
