package equidex

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
)

type mockEmbedder struct {
	mu        sync.Mutex
	calls     int
	healthErr error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if strings.Contains(strings.ToLower(text), "revenue") {
		return EmbeddingResult{Embedding: []float32{1, 0}, PromptTokens: 2, TotalTokens: 2}, nil
	}
	return EmbeddingResult{Embedding: []float32{0.6, 0.8}, PromptTokens: 2, TotalTokens: 2}, nil
}

func (m *mockEmbedder) HealthCheck(context.Context) error { return m.healthErr }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockBatchEmbedder struct {
	mockEmbedder
	batches int
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	m.batches++
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		r, _ := m.Embed(ctx, t)
		out.Embeddings[i] = r.Embedding
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}

// mockGenerator answers every prompt with a fixed analysis; the agent named fail gets an error.
type mockGenerator struct {
	fail string
}

func (m *mockGenerator) Generate(_ context.Context, req GenerationRequest) (GenerationResult, error) {
	if m.fail != "" && strings.Contains(req.System, m.fail) {
		return GenerationResult{}, domain.ErrGenerationProviderError
	}
	if err := DecodeShape(`{"analysis": "looks fine"}`, req.Shape); err != nil {
		return GenerationResult{}, err
	}
	return GenerationResult{PromptTokens: 10, CompletionTokens: 3}, nil
}

func testDocuments() []Document {
	return []Document{{
		Name: "10-K",
		Text: "Revenue grew 12% year over year.",
		Tables: []Table{{
			Name:    "balance",
			Columns: []string{"item", "value"},
			Rows:    [][]string{{"cash", "120"}},
		}},
		Articles: []Article{{Title: "ACME expands", Summary: "New plant opened."}},
	}}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithEmbedder(&mockEmbedder{}), WithGenerator(&mockGenerator{})}
	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_RequiresProviders(t *testing.T) {
	if _, err := New(context.Background(), WithGenerator(&mockGenerator{})); err == nil {
		t.Fatal("expected error without embedder")
	}
	if _, err := New(context.Background(), WithEmbedder(&mockEmbedder{})); err == nil {
		t.Fatal("expected error without generator")
	}
}

func TestNew_InvalidChunking(t *testing.T) {
	_, err := New(context.Background(),
		WithEmbedder(&mockEmbedder{}), WithGenerator(&mockGenerator{}), WithChunking(100, 100))
	if err == nil {
		t.Fatal("expected error for overlap >= size")
	}
}

func TestEmbedderAdapter_PrefersBatch(t *testing.T) {
	b := &mockBatchEmbedder{}
	adapted := adaptEmbedder(b)
	be, ok := adapted.(domain.BatchEmbedder)
	if !ok {
		t.Fatal("expected adapter to expose BatchEmbed")
	}
	res, err := be.BatchEmbed(context.Background(), []string{"a", "revenue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 4 {
		t.Errorf("unexpected batch result: %+v", res)
	}
	if b.batches != 1 {
		t.Errorf("batches = %d, want 1", b.batches)
	}

	if _, ok := adaptEmbedder(&mockEmbedder{}).(domain.BatchEmbedder); ok {
		t.Error("plain embedder must not be adapted as a batch embedder")
	}
}

func TestClient_Analyze(t *testing.T) {
	c := newTestClient(t, WithConcurrency(3))

	res, err := c.Analyze(context.Background(), AnalyzeRequest{
		Company:   "ACME",
		Set:       SetPrimary,
		Documents: testDocuments(),
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	primary := agent.Primary()
	if len(res.Run.Results) != len(primary) {
		t.Fatalf("results = %d, want %d", len(res.Run.Results), len(primary))
	}
	for i, a := range primary {
		if got := res.Run.Results[i].AgentName; got != a.Name() {
			t.Errorf("slot %d = %q, want %q", i, got, a.Name())
		}
	}
	if res.Run.Present() != len(primary) {
		t.Errorf("present = %d, want %d", res.Run.Present(), len(primary))
	}
	if res.Corpus.Text != 1 || res.Corpus.Table != 1 || res.Corpus.Article != 1 {
		t.Errorf("unexpected corpus stats: %+v", res.Corpus)
	}
	if res.Usage.PromptTokens != 10*len(primary) || res.Usage.EmbeddingTokens == 0 {
		t.Errorf("unexpected usage: %+v", res.Usage)
	}
}

func TestClient_Analyze_FailedAgentKeepsSlot(t *testing.T) {
	failing := agent.Primary()[2].Name()
	c, err := New(context.Background(),
		WithEmbedder(&mockEmbedder{}), WithGenerator(&mockGenerator{fail: failing}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	res, err := c.Analyze(context.Background(), AnalyzeRequest{Company: "ACME", Documents: testDocuments()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Run.Results[2].Present() {
		t.Errorf("slot 2 should be missing")
	}
	missing := res.Run.MissingAgents()
	if len(missing) != 1 || missing[0] != failing {
		t.Errorf("missing = %v, want [%s]", missing, failing)
	}
}

// silentGenerator succeeds without writing to the shape target.
type silentGenerator struct{}

func (silentGenerator) Generate(context.Context, GenerationRequest) (GenerationResult, error) {
	return GenerationResult{PromptTokens: 1}, nil
}

func TestClient_Analyze_UndecodedResponsesAreMissing(t *testing.T) {
	c, err := New(context.Background(), WithEmbedder(&mockEmbedder{}), WithGenerator(silentGenerator{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	res, err := c.Analyze(context.Background(), AnalyzeRequest{Company: "ACME", Documents: testDocuments()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Run.Present() != 0 {
		t.Errorf("present = %d, want 0", res.Run.Present())
	}
	for _, r := range res.Run.Results {
		if r.Failure == nil || !errors.Is(r.Failure.Err, ErrInvalidResponse) {
			t.Errorf("%s: failure = %+v, want ErrInvalidResponse", r.AgentName, r.Failure)
		}
	}
}

func TestClient_Analyze_Errors(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Analyze(context.Background(), AnalyzeRequest{Documents: testDocuments()})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest without company, got %v", err)
	}

	_, err = c.Analyze(context.Background(), AnalyzeRequest{Company: "ACME", Set: "bogus", Documents: testDocuments()})
	if !errors.Is(err, ErrUnknownAgentSet) || !IsConfigError(err) {
		t.Errorf("expected ErrUnknownAgentSet, got %v", err)
	}

	_, err = c.Analyze(context.Background(), AnalyzeRequest{Company: "ACME", Documents: []Document{{Name: "empty"}}})
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestClient_Retrieve(t *testing.T) {
	c := newTestClient(t)

	matches, err := c.Retrieve(context.Background(), testDocuments(), "revenue growth", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	want := []string{"text", "table", "article"}
	if len(matches) != len(want) {
		t.Fatalf("matches = %d, want %d", len(matches), len(want))
	}
	for i, m := range matches {
		if m.Category != want[i] {
			t.Errorf("match %d category = %q, want %q", i, m.Category, want[i])
		}
		if m.Source != "10-K" {
			t.Errorf("match %d source = %q, want 10-K", i, m.Source)
		}
	}
	if matches[0].Score < 0.99 {
		t.Errorf("text score = %f, want ~1", matches[0].Score)
	}

	if _, err := c.Retrieve(context.Background(), testDocuments(), "  ", 1); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty query, got %v", err)
	}
}

func TestClient_Agents(t *testing.T) {
	c := newTestClient(t)

	all, err := c.Agents(SetAll)
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if len(all) != len(agent.Primary())+len(agent.Extended()) {
		t.Errorf("all = %d agents", len(all))
	}
	if _, err := c.Agents("bogus"); !errors.Is(err, ErrUnknownAgentSet) {
		t.Errorf("expected ErrUnknownAgentSet, got %v", err)
	}
}

func TestClient_MemoryCacheSkipsRepeatedEmbeddings(t *testing.T) {
	emb := &mockEmbedder{}
	c, err := New(context.Background(), WithEmbedder(emb), WithGenerator(&mockGenerator{}), WithMemoryCache(64))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	req := AnalyzeRequest{Company: "ACME", Documents: testDocuments()}
	if _, err := c.Analyze(context.Background(), req); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	first := emb.callCount()
	if _, err := c.Analyze(context.Background(), req); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if got := emb.callCount(); got != first {
		t.Errorf("second run embedded %d texts, want 0", got-first)
	}
}

func TestClient_Health(t *testing.T) {
	emb := &mockEmbedder{healthErr: errors.New("down")}
	c, err := New(context.Background(), WithEmbedder(emb), WithGenerator(&mockGenerator{}), WithMemoryCache(8))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	h := c.Health(context.Background())
	if h.Status != "degraded" {
		t.Errorf("status = %q, want degraded", h.Status)
	}
	if h.Checks["cache"] != "ok" || h.Checks["embedding"] != "error" {
		t.Errorf("unexpected checks: %v", h.Checks)
	}
	if _, ok := h.Checks["generation"]; ok {
		t.Error("generator without HealthCheck must not be probed")
	}
}

func TestClient_ObservesOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, WithPrometheus(reg), WithLogger(slog.New(slog.DiscardHandler)))

	if _, err := c.Analyze(context.Background(), AnalyzeRequest{Company: "ACME", Documents: testDocuments()}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	_, _ = c.Retrieve(context.Background(), testDocuments(), "", 1)

	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("analyze", "ok")); got != 1 {
		t.Errorf("analyze ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("retrieve", "error")); got != 1 {
		t.Errorf("retrieve error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.slots.WithLabelValues("present")); got != float64(len(agent.Primary())) {
		t.Errorf("present slots = %v, want %d", got, len(agent.Primary()))
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithRedisCache("localhost:6379", "secret").apply(cfg)
	if cfg.redisAddr != "localhost:6379" || cfg.redisPass != "secret" {
		t.Errorf("redis = (%q, %q)", cfg.redisAddr, cfg.redisPass)
	}
	WithMemoryCache(32).apply(cfg)
	if cfg.cacheSize != 32 || cfg.redisAddr != "" {
		t.Errorf("memory cache must replace redis, got size=%d addr=%q", cfg.cacheSize, cfg.redisAddr)
	}

	WithTaskTimeout(time.Second).apply(cfg)
	WithTokenBudget(500).apply(cfg)
	WithTopK(7).apply(cfg)
	WithMaxTokens(900).apply(cfg)
	WithCacheTTL(time.Hour).apply(cfg)
	if cfg.taskTimeout != time.Second || cfg.tokenBudget != 500 || cfg.topK != 7 ||
		cfg.maxTokens != 900 || cfg.cacheTTL != time.Hour {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close()
}
