package ingest

import (
	"context"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Embedder vectorizes fragment payloads. Implementations may also satisfy domain.BatchEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator summarizes narrative chunks when summarization is enabled.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}
