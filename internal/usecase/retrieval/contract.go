package retrieval

import (
	"context"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/fragment"
	"github.com/kailas-cloud/equidex/internal/index"
)

// Ranker ranks fragments of one category against a query vector.
type Ranker interface {
	Rank(ctx context.Context, cat fragment.Category, query []float32, k int) ([]index.Match, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
