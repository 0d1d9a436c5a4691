package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/logger"
	"github.com/kailas-cloud/equidex/internal/metrics"
)

// Defaults.
const (
	DefaultConcurrency = 4
	DefaultTaskTimeout = 2 * time.Minute
)

// Observer is notified once per slot as soon as its result is final.
// Calls are serialized.
type Observer func(i int, r analysis.Result)

// Service fans agent tasks out over a bounded worker pool and collects
// one result slot per agent in registration order.
type Service struct {
	retriever   Retriever
	generator   Generator
	registry    *agent.Registry
	concurrency int
	taskTimeout time.Duration
	tokenBudget int
	topK        int
	maxTokens   int
	limiter     *rate.Limiter
	observer    Observer
	observeMu   sync.Mutex
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency bounds in-flight agent tasks. n <= 0 keeps the default.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTaskTimeout bounds each agent task. 0 disables the per-task timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.taskTimeout = d
		}
	}
}

// WithTokenBudget sets the token budget rendered into agent instructions. 0 means none.
func WithTokenBudget(n int) Option {
	return func(s *Service) { s.tokenBudget = max(n, 0) }
}

// WithTopK sets the per-category retrieval count. 0 uses the retriever default.
func WithTopK(k int) Option {
	return func(s *Service) { s.topK = max(k, 0) }
}

// WithMaxTokens caps generation output per agent. 0 uses the provider default.
func WithMaxTokens(n int) Option {
	return func(s *Service) { s.maxTokens = max(n, 0) }
}

// WithLimiter throttles task starts across the whole run.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithObserver installs a progress hook.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithRetriever swaps the retriever, typically for a per-request corpus.
func WithRetriever(r Retriever) Option {
	return func(s *Service) {
		if r != nil {
			s.retriever = r
		}
	}
}

// WithRegistry replaces the built-in agent registry used by Analyze.
func WithRegistry(r *agent.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// New creates an orchestrator.
func New(retriever Retriever, generator Generator, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		retriever:   retriever,
		generator:   generator,
		concurrency: DefaultConcurrency,
		taskTimeout: DefaultTaskTimeout,
		logger:      log,
	}
	for _, o := range opts {
		o(s)
	}
	if s.registry == nil {
		s.registry = agent.DefaultRegistry()
	}
	return s
}

// Registry returns the registry Analyze selects from.
func (s *Service) Registry() *agent.Registry { return s.registry }

// With returns a copy of s with extra options applied, for per-request overrides.
func (s *Service) With(opts ...Option) *Service {
	c := &Service{
		retriever:   s.retriever,
		generator:   s.generator,
		registry:    s.registry,
		concurrency: s.concurrency,
		taskTimeout: s.taskTimeout,
		tokenBudget: s.tokenBudget,
		topK:        s.topK,
		maxTokens:   s.maxTokens,
		limiter:     s.limiter,
		observer:    s.observer,
		logger:      s.logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze runs the given set from the service registry and wraps the results in a Run record.
func (s *Service) Analyze(ctx context.Context, set agent.Set) (analysis.Run, error) {
	run := analysis.NewRun(string(set))
	ctx = logger.With(ctx, s.logger, zap.String("run_id", run.ID.String()), zap.String("set", string(set)))

	results, err := s.RunSet(ctx, s.registry, set)
	if results == nil && err != nil {
		return analysis.Run{}, err
	}
	run.Finish(results)

	logger.FromContextOr(ctx, s.logger).Info("Analysis run finished",
		zap.Int("agents", len(results)),
		zap.Int("present", run.Present()),
		zap.Strings("missing", run.MissingAgents()),
		zap.Duration("duration", run.Duration()),
	)
	return run, err
}

// RunSet selects set from registry and runs it.
func (s *Service) RunSet(ctx context.Context, registry *agent.Registry, set agent.Set) ([]analysis.Result, error) {
	agents, err := registry.Select(set)
	if err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}
	return s.Run(ctx, agents)
}

// Run executes one task per agent and returns exactly len(agents) results in input order.
// A failed or timed-out task leaves an absence marker in its slot and never affects the others.
// A configuration error aborts the whole run and no results are returned.
// If ctx is cancelled, unfinished slots become absence markers and ctx.Err() is returned with them.
func (s *Service) Run(ctx context.Context, agents []agent.Agent) ([]analysis.Result, error) {
	results := make([]analysis.Result, len(agents))
	if len(agents) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, a := range agents {
		g.Go(func() error {
			res, err := s.runTask(gctx, a)
			if err != nil {
				return fmt.Errorf("agent %q: %w", a.Name(), err)
			}
			results[i] = res
			s.notify(i, res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.FromContextOr(ctx, s.logger).Error("Analysis run aborted", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// runTask returns a non-nil error only for configuration errors.
func (s *Service) runTask(ctx context.Context, a agent.Agent) (analysis.Result, error) {
	name := a.Name()
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("agent", name))
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return s.missing(log, name, analysis.StepTimeout, err, start), nil
	}

	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}
	ctx = logger.ContextWithLogger(ctx, log)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.missing(log, name, analysis.StepTimeout, err, start), nil
		}
	}

	fragments, err := s.retriever.Retrieve(ctx, a.Query(), s.topK)
	if err != nil {
		if domain.IsConfigError(err) {
			return analysis.Result{}, fmt.Errorf("retrieve: %w", err)
		}
		return s.missing(log, name, stepFor(ctx, analysis.StepRetrieve), err, start), nil
	}

	prompt, err := a.Render(fragments, s.tokenBudget)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("render: %w", err)
	}

	var resp AnalysisResponse
	usage, err := s.generator.Generate(ctx, domain.GenerationRequest{
		System:    prompt.System,
		User:      prompt.User,
		Shape:     domain.Shape{Name: ShapeName, Target: &resp},
		MaxTokens: s.maxTokens,
	})
	domain.UsageFromContext(ctx).AddGeneration(usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		step := analysis.StepGenerate
		if errors.Is(err, domain.ErrInvalidResponse) {
			step = analysis.StepValidate
		}
		return s.missing(log, name, stepFor(ctx, step), err, start), nil
	}
	// Generators are not required to run the shape's Validator themselves.
	if err := resp.Validate(); err != nil {
		return s.missing(log, name, analysis.StepValidate, fmt.Errorf("%w: %w", domain.ErrInvalidResponse, err), start), nil
	}

	res := analysis.Success(name, strings.TrimSpace(resp.Analysis))
	metrics.AgentRunsTotal.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
	metrics.AgentDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	log.Debug("Agent analysis completed",
		zap.Int("context_fragments", len(fragments)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (s *Service) missing(log *zap.Logger, name string, step analysis.Step, err error, start time.Time) analysis.Result {
	metrics.AgentRunsTotal.WithLabelValues(name, metrics.OutcomeMissing).Inc()
	metrics.AgentFailuresTotal.WithLabelValues(name, string(step)).Inc()
	metrics.AgentDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	log.Error("Agent analysis unavailable",
		zap.String("step", string(step)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return analysis.Missing(name, step, err)
}

func (s *Service) notify(i int, r analysis.Result) {
	if s.observer == nil {
		return
	}
	s.observeMu.Lock()
	defer s.observeMu.Unlock()
	s.observer(i, r)
}

// stepFor reports a timeout instead of step when the task context is done.
func stepFor(ctx context.Context, step analysis.Step) analysis.Step {
	if ctx.Err() != nil {
		return analysis.StepTimeout
	}
	return step
}
