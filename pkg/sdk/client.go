package equidex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/db"
	"github.com/kailas-cloud/equidex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/equidex/internal/db/redis"
	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/repository/embcache"
	"github.com/kailas-cloud/equidex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/equidex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/equidex/internal/usecase/ingest"
	"github.com/kailas-cloud/equidex/internal/usecase/orchestrator"
	pipelineuc "github.com/kailas-cloud/equidex/internal/usecase/pipeline"
	"github.com/kailas-cloud/equidex/internal/usecase/retrieval"
	reportuc "github.com/kailas-cloud/equidex/internal/usecase/report"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultConcurrency      = 4
	defaultTaskTimeout      = 2 * time.Minute
	defaultChunkSize        = 4000
	providerLabel           = "custom"
)

// Internal interfaces for substitution in tests.
type pipelineUseCase interface {
	Analyze(ctx context.Context, req pipelineuc.Request) (pipelineuc.Result, error)
	Retrieve(ctx context.Context, docs []Document, query string, k int) ([]retrieval.CategoryMatches, domain.UsageSnapshot, error)
	Agents(set AgentSet) ([]Agent, error)
}

// Client is the equidex library entry point.
type Client struct {
	store     db.Store
	pipeline  pipelineUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. With a Redis cache the provided context bounds
// the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		concurrency: defaultConcurrency,
		taskTimeout: defaultTaskTimeout,
		topK:        retrieval.DefaultK,
		chunkSize:   defaultChunkSize,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("equidex: embedder required (use WithEmbedder)")
	}
	if cfg.generator == nil {
		return nil, errors.New("equidex: generator required (use WithGenerator)")
	}
	if cfg.chunkOverlap >= cfg.chunkSize {
		return nil, fmt.Errorf("equidex: chunk overlap %d must be smaller than chunk size %d", cfg.chunkOverlap, cfg.chunkSize)
	}

	store, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

// createStore returns nil when no cache is configured.
func createStore(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	switch {
	case cfg.redisAddr != "":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    []string{cfg.redisAddr},
			Password: cfg.redisPass,
		})
		if err != nil {
			return nil, fmt.Errorf("equidex: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("equidex: redis not ready: %w", err)
		}
		return s, nil
	case cfg.cacheSize > 0:
		s, err := memory.New(cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("equidex: create memory store: %w", err)
		}
		return s, nil
	default:
		return nil, nil
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	log := zap.NewNop()

	emb := adaptEmbedder(cfg.embedder)
	if store != nil {
		emb = embcache.New(emb, store, nil, log, embcache.WithTTL(cfg.cacheTTL))
	}
	emb = embedding.NewInstrumentedEmbedder(emb, providerLabel, "", log)

	orch := orchestrator.New(nil, cfg.generator, log,
		orchestrator.WithConcurrency(cfg.concurrency),
		orchestrator.WithTaskTimeout(cfg.taskTimeout),
		orchestrator.WithTokenBudget(cfg.tokenBudget),
		orchestrator.WithTopK(cfg.topK),
		orchestrator.WithMaxTokens(cfg.maxTokens),
	)
	ing := ingestuc.New(emb, log, ingestuc.WithChunking(cfg.chunkSize, cfg.chunkOverlap))
	reporter := reportuc.New(cfg.generator, cfg.tokenBudget, cfg.maxTokens, log)

	var pinger healthuc.Pinger
	if store != nil {
		pinger = store
	}
	var embHealth, genHealth healthuc.ProviderChecker
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		embHealth = hc
	}
	if hc, ok := cfg.generator.(domain.HealthChecker); ok {
		genHealth = hc
	}

	return &Client{
		store:     store,
		pipeline:  pipelineuc.New(ing, emb, orch, reporter, log),
		healthSvc: healthuc.New(pinger, embHealth, genHealth),
		obs:       obs,
	}
}

// Close releases the cache store, if any.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Agents lists the agents of set in catalog order.
func (c *Client) Agents(set AgentSet) ([]Agent, error) {
	agents, err := c.pipeline.Agents(set)
	if err != nil {
		return nil, fmt.Errorf("agents: %w", err)
	}
	return agents, nil
}

// Analyze ingests req.Documents and runs the selected agents over them.
// Per-agent failures are reported in the run, not as an error.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (res AnalyzeResult, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("analyze", start, err,
			"company", req.Company,
			"set", string(req.Set),
			"missing", len(res.Run.MissingAgents()),
		)
	}()

	res, err = c.pipeline.Analyze(ctx, req)
	if err != nil {
		return res, fmt.Errorf("analyze: %w", err)
	}
	c.obs.observeRun(res.Run, res.Usage)
	return res, nil
}

// Retrieve ingests docs and returns the top k fragments per category for query,
// in text, table, article order.
func (c *Client) Retrieve(ctx context.Context, docs []Document, query string, k int) (_ []Match, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	groups, _, err := c.pipeline.Retrieve(ctx, docs, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	var out []Match
	for _, g := range groups {
		for _, m := range g.Matches {
			out = append(out, Match{
				Category: string(g.Category),
				Source:   m.Fragment.Source(),
				Text:     m.Fragment.Payload(),
				Score:    m.Score,
			})
		}
	}
	return out, nil
}
