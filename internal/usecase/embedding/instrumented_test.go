package embedding

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type fakeEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchSizes []int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return f.result, f.err
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.batchErr != nil {
		return domain.BatchEmbeddingResult{}, f.batchErr
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		out.Embeddings[i] = f.result.Embedding
		out.PromptTokens += f.result.PromptTokens
		out.TotalTokens += f.result.TotalTokens
	}
	return out, nil
}

// singleEmbedder implements only domain.Embedder.
type singleEmbedder struct {
	result domain.EmbeddingResult
	calls  int
}

func (s *singleEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	s.calls++
	return s.result, nil
}

func TestInstrumentedEmbedder_Embed(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 100}}
	p := NewInstrumentedEmbedder(inner, "test", "model", zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := p.Embed(ctx, "operating margin")
	require.NoError(t, err)
	assert.Len(t, res.Embedding, 2)
	assert.Equal(t, 100, usage.Snapshot().EmbeddingTokens)
}

func TestInstrumentedEmbedder_EmbedError(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("api error")}
	p := NewInstrumentedEmbedder(inner, "test", "model", zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestInstrumentedEmbedder_BudgetRejection(t *testing.T) {
	budget := NewBudgetTracker("test-reject", Limits{Daily: 100, Action: BudgetActionReject}, zap.NewNop())
	budget.Record(100)

	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	p := NewInstrumentedEmbedder(inner, "test-reject", "model", zap.NewNop(), WithBudget(budget))

	_, err := p.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, domain.ErrEmbeddingQuotaExceeded)

	_, err = p.BatchEmbed(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, domain.ErrEmbeddingQuotaExceeded)
	assert.Empty(t, inner.batchSizes)
}

func TestInstrumentedEmbedder_RecordsBudgetAndGauge(t *testing.T) {
	budget := NewBudgetTracker("test-record", Limits{Daily: 1_000_000, Monthly: 10_000_000}, zap.NewNop())
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 100}}
	p := NewInstrumentedEmbedder(inner, "test-record", "model", zap.NewNop(), WithBudget(budget))

	_, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, int64(999_700), budget.RemainingDaily())
	assert.Equal(t, 999_700.0,
		testutil.ToFloat64(metrics.EmbeddingBudgetTokensRemaining.WithLabelValues("test-record", "daily")))
}

func TestInstrumentedEmbedder_BatchChunking(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 1}}
	p := NewInstrumentedEmbedder(inner, "test", "model", zap.NewNop(), WithMaxBatchSize(2))

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, res.Embeddings, 5)
	assert.Equal(t, 5, res.TotalTokens)
	assert.Equal(t, []int{2, 2, 1}, inner.batchSizes)
}

func TestInstrumentedEmbedder_BatchEmpty(t *testing.T) {
	p := NewInstrumentedEmbedder(&fakeEmbedder{}, "test", "model", zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Embeddings)
}

func TestInstrumentedEmbedder_BatchInnerError(t *testing.T) {
	inner := &fakeEmbedder{batchErr: errors.New("api error")}
	p := NewInstrumentedEmbedder(inner, "test", "model", zap.NewNop())

	_, err := p.BatchEmbed(context.Background(), []string{"a"})
	require.Error(t, err)
}

func TestInstrumentedEmbedder_BatchFallbackToSingle(t *testing.T) {
	inner := &singleEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 5}}
	p := NewInstrumentedEmbedder(inner, "test", "model", zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, res.Embeddings, 2)
	assert.Equal(t, 2, inner.calls)
	assert.NoError(t, p.HealthCheck(context.Background()))
}
