package pipeline

import (
	"context"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	"github.com/kailas-cloud/equidex/internal/domain/fragment"
	domreport "github.com/kailas-cloud/equidex/internal/domain/report"
)

// Ingester turns documents into an embedded corpus.
type Ingester interface {
	Build(ctx context.Context, docs []document.Document) (*fragment.Corpus, error)
}

// Reporter integrates a run's analyses into a structured report.
type Reporter interface {
	Compose(ctx context.Context, company string, results []analysis.Result, tables []document.Table) (domreport.Report, error)
}

// Embedder vectorizes retrieval queries.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
