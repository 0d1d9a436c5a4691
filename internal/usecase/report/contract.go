package report

import (
	"context"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Generator produces the structured report.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}
