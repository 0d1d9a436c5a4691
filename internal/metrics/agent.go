package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Agent outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeMissing = "missing"
)

// Orchestrator Prometheus metrics.
var (
	AgentRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Agent task outcomes",
		},
		[]string{"agent", "outcome"},
	)

	AgentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_duration_seconds",
			Help:      "Agent task duration from retrieval to validated analysis",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"agent"},
	)

	AgentFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_failures_total",
			Help:      "Agent task failures by pipeline step",
		},
		[]string{"agent", "step"},
	)
)

var agentOnce sync.Once

// RegisterAgentMetrics registers orchestrator metrics. Idempotent.
func RegisterAgentMetrics() {
	agentOnce.Do(func() {
		prometheus.MustRegister(AgentRunsTotal, AgentDuration, AgentFailuresTotal)
	})
}
