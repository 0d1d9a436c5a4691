package equidex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "client"

// clientMetrics are the collectors a Client built WithPrometheus reports to.
type clientMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	slots      *prometheus.CounterVec
	tokens     *prometheus.CounterVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "equidex",
			Subsystem: metricsSubsystem,
			Name:      "operations_total",
			Help:      "Analyze, Retrieve and Health calls by outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "equidex",
			Subsystem: metricsSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of client calls, ingestion included.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 180},
		}, []string{"operation"}),
		slots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "equidex",
			Subsystem: metricsSubsystem,
			Name:      "agent_slots_total",
			Help:      "Analysis slots returned by Analyze, split into present and missing.",
		}, []string{"outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "equidex",
			Subsystem: metricsSubsystem,
			Name:      "tokens_total",
			Help:      "Provider tokens consumed by Analyze runs.",
		}, []string{"kind"}),
	}
	for _, c := range []**prometheus.CounterVec{&m.operations, &m.slots, &m.tokens} {
		if err := registerOrReuse(reg, c); err != nil {
			return nil, err
		}
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers *c, or points it at the collector already registered
// under the same descriptor so several clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("equidex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("equidex: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts client calls. A nil observer, or one without
// metrics or logger, silently skips that half.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newClientMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

// observe records one call. attrs are extra slog key-value pairs.
func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	attrs = append([]any{"op", op, "duration", dur}, attrs...)
	if err != nil {
		o.logger.Warn("equidex call failed", append(attrs, "error", err)...)
		return
	}
	o.logger.Debug("equidex call completed", attrs...)
}

// observeRun counts the slots and token usage of a completed Analyze.
func (o *observer) observeRun(run Run, usage Usage) {
	if o == nil || o.metrics == nil {
		return
	}
	present := run.Present()
	o.metrics.slots.WithLabelValues("present").Add(float64(present))
	o.metrics.slots.WithLabelValues("missing").Add(float64(len(run.Results) - present))
	o.metrics.tokens.WithLabelValues("embedding").Add(float64(usage.EmbeddingTokens))
	o.metrics.tokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	o.metrics.tokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
}
