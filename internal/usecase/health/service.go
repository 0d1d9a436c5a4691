package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported by the service.
const (
	ComponentCache      = "cache"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates component health checks.
type Service struct {
	checks  []check
	timeout time.Duration
}

// New creates a Service. Any argument can be nil; its check is then omitted.
func New(cache Pinger, embedding, generation ProviderChecker) *Service {
	s := &Service{timeout: DefaultCheckTimeout}
	if cache != nil {
		s.checks = append(s.checks, check{ComponentCache, cache.Ping})
	}
	if embedding != nil {
		s.checks = append(s.checks, check{ComponentEmbedding, embedding.HealthCheck})
	}
	if generation != nil {
		s.checks = append(s.checks, check{ComponentGeneration, generation.HealthCheck})
	}
	return s
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[c.name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
