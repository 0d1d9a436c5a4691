package orchestrator

import (
	"context"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Retriever fetches context payloads for an agent's query.
// Unrecoverable configuration errors are returned; provider failures degrade to an empty slice.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Generator produces shape-validated structured responses.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}
