package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/equidex/internal/config"
	"github.com/kailas-cloud/equidex/internal/db"
	"github.com/kailas-cloud/equidex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/equidex/internal/db/redis"
	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/equidex/internal/repository/budget"
	"github.com/kailas-cloud/equidex/internal/repository/embcache"
	anthropicGen "github.com/kailas-cloud/equidex/internal/transport/anthropic"
	"github.com/kailas-cloud/equidex/internal/transport/httpclient"
	ollamaProv "github.com/kailas-cloud/equidex/internal/transport/ollama"
	openaiProv "github.com/kailas-cloud/equidex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/equidex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/equidex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/equidex/internal/usecase/ingest"
	"github.com/kailas-cloud/equidex/internal/usecase/orchestrator"
	pipelineuc "github.com/kailas-cloud/equidex/internal/usecase/pipeline"
	reportuc "github.com/kailas-cloud/equidex/internal/usecase/report"
)

// App holds every wired service of one process.
type App struct {
	Pipeline *pipelineuc.Service
	Health   *healthuc.Service
	store    db.Store
}

// Close releases the cache store, if any.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// Wire builds the provider clients, embedder chains and use cases from cfg.
// extra options are applied to the orchestrator after the configured ones.
func Wire(ctx context.Context, cfg config.Config, logger *zap.Logger, extra ...orchestrator.Option) (*App, error) {
	metrics.Register()

	client := httpclient.New(httpclient.Config{
		RetryMax:     cfg.Client.RetryMax,
		RetryWaitMax: time.Duration(cfg.Client.RetryWaitMaxSec) * time.Second,
		Timeout:      time.Duration(cfg.Client.TimeoutSec) * time.Second,
	}, logger)

	store, err := newStore(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	app := &App{store: store}

	budget, err := newBudget(ctx, cfg.Embedding, store, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	base, err := newBaseEmbedder(cfg.Embedding, client, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	docEmbedder := buildEmbedder(base, cfg.Embedding, cfg.Embedding.DocumentInstruction, store, cfg.Cache, budget, logger)
	queryEmbedder := buildEmbedder(base, cfg.Embedding, cfg.Embedding.QueryInstruction, store, cfg.Cache, budget, logger)

	gen, err := newGenerator(cfg.Generation, client, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	logger.Info("Providers created",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("generation_model", cfg.Generation.Model),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	opts := []orchestrator.Option{
		orchestrator.WithConcurrency(cfg.Orchestrator.Concurrency),
		orchestrator.WithTaskTimeout(time.Duration(cfg.Orchestrator.TaskTimeoutSec) * time.Second),
		orchestrator.WithTokenBudget(cfg.Orchestrator.TokenBudget),
		orchestrator.WithTopK(cfg.Orchestrator.TopK),
		orchestrator.WithMaxTokens(cfg.Generation.MaxTokens),
	}
	if l := newLimiter(cfg.Orchestrator); l != nil {
		opts = append(opts, orchestrator.WithLimiter(l))
	}
	// The retriever is bound per request by the pipeline.
	orch := orchestrator.New(nil, gen, logger, append(opts, extra...)...)

	ingestOpts := []ingestuc.Option{ingestuc.WithChunking(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)}
	if cfg.Ingest.Summarize {
		ingestOpts = append(ingestOpts,
			ingestuc.WithSummarizer(gen, cfg.Ingest.SummaryTokenBudget, cfg.Ingest.SummaryConcurrency))
	}
	ing := ingestuc.New(docEmbedder, logger, ingestOpts...)

	reportMax := cfg.Generation.ReportMaxTokens
	if reportMax == 0 {
		reportMax = cfg.Generation.MaxTokens
	}
	reporter := reportuc.New(gen, cfg.Orchestrator.TokenBudget, reportMax, logger)

	app.Pipeline = pipelineuc.New(ing, queryEmbedder, orch, reporter, logger)

	var pinger healthuc.Pinger
	if store != nil {
		pinger = store
	}
	app.Health = healthuc.New(pinger, newProviderHealth(base), gen)
	return app, nil
}

// newStore returns nil for the none driver.
func newStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		store, err = memory.New(cfg.Size)
	case config.CacheRedis:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s store not ready: %w", cfg.Driver, err)
	}
	logger.Info("Connected to cache store", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))
	return store, nil
}

// newBudget returns a nil BudgetChecker interface (not a typed nil) when no limit is configured.
func newBudget(
	ctx context.Context, cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger,
) (embeddinguc.BudgetChecker, error) {
	if cfg.Budget.DailyTokenLimit <= 0 && cfg.Budget.MonthlyTokenLimit <= 0 {
		return nil, nil
	}
	action, err := embeddinguc.ParseBudgetAction(cfg.Budget.Action)
	if err != nil {
		return nil, err
	}
	tracker := embeddinguc.NewBudgetTracker(cfg.Provider, embeddinguc.Limits{
		Daily:   cfg.Budget.DailyTokenLimit,
		Monthly: cfg.Budget.MonthlyTokenLimit,
		Action:  action,
	}, logger)
	if store != nil {
		tracker.WithStore(ctx, budgetrepo.New(store, 0, 0))
	}
	return tracker, nil
}

func newBaseEmbedder(cfg config.EmbeddingConfig, client *http.Client, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return openaiProv.NewEmbedder(&openaiProv.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			HTTPClient: client,
			Logger:     logger,
		}), nil
	case "ollama":
		e, err := ollamaProv.NewEmbedder(ollamaProv.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			HTTPClient: client,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	cacheCfg config.CacheConfig,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger,
			embcache.WithModel(cfg.Model),
			embcache.WithTTL(time.Duration(cacheCfg.TTLSec)*time.Second),
		)
	}

	var opts []embeddinguc.Option
	if budget != nil {
		opts = append(opts, embeddinguc.WithBudget(budget))
	}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddinguc.WithMaxBatchSize(cfg.BatchSize))
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger, opts...)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// generator is what the use cases and health checks need from a provider.
type generator interface {
	domain.Generator
	domain.HealthChecker
}

func newGenerator(cfg config.GenerationConfig, client *http.Client, logger *zap.Logger) (generator, error) {
	switch cfg.Provider {
	case "openai":
		return openaiProv.NewGenerator(&openaiProv.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Provider:    cfg.Provider,
			Temperature: float32(cfg.Temperature),
			HTTPClient:  client,
			Logger:      logger,
		}, openaiProv.WithStrictSchema(cfg.StrictSchema)), nil
	case "anthropic":
		g, err := anthropicGen.NewGenerator(anthropicGen.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			HTTPClient:  client,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create anthropic generator: %w", err)
		}
		return g, nil
	case "ollama":
		g, err := ollamaProv.NewGenerator(ollamaProv.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			HTTPClient:  client,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama generator: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

func newLimiter(cfg config.OrchestratorConfig) *rate.Limiter {
	if cfg.RateLimitPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateBurst)
}

// providerHealth adapts anything that may implement domain.HealthChecker.
type providerHealth struct {
	target any
}

func newProviderHealth(target any) *providerHealth {
	return &providerHealth{target: target}
}

func (h *providerHealth) HealthCheck(ctx context.Context) error {
	if hc, ok := h.target.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("provider health check: %w", err)
		}
	}
	return nil
}
