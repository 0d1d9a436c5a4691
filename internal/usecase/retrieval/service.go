package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain/fragment"
	"github.com/kailas-cloud/equidex/internal/index"
	"github.com/kailas-cloud/equidex/internal/logger"
)

// DefaultK is the per-category result count when the caller passes k <= 0.
const DefaultK = 5

// CategoryMatches groups ranked fragments of one category.
type CategoryMatches struct {
	Category fragment.Category
	Matches  []index.Match
}

// Service turns a query string into ranked context fragments across categories.
type Service struct {
	ranker     Ranker
	embed      Embedder
	defaultK   int
	categories []fragment.Category
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultK overrides DefaultK. k <= 0 is ignored.
func WithDefaultK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// WithCategories overrides the category order. Empty keeps text, table, article.
func WithCategories(cats ...fragment.Category) Option {
	return func(s *Service) {
		if len(cats) > 0 {
			s.categories = append([]fragment.Category(nil), cats...)
		}
	}
}

// New creates a retrieval service.
func New(ranker Ranker, embed Embedder, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		ranker:     ranker,
		embed:      embed,
		defaultK:   DefaultK,
		categories: fragment.Categories(),
		logger:     log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Retrieve returns up to k payloads per category, flattened in category order.
// An embedding failure degrades to an empty context; index configuration errors are returned.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	groups, err := s.RetrieveMatches(ctx, query, k)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0)
	for _, g := range groups {
		for _, m := range g.Matches {
			out = append(out, m.Fragment.Payload())
		}
	}
	return out, nil
}

// RetrieveMatches is Retrieve with scores, grouped by category.
func (s *Service) RetrieveMatches(ctx context.Context, query string, k int) ([]CategoryMatches, error) {
	if k <= 0 {
		k = s.defaultK
	}

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		s.log(ctx).Warn("Query embedding failed, continuing without context",
			zap.String("query", query),
			zap.Error(err),
		)
		return []CategoryMatches{}, nil
	}

	groups := make([]CategoryMatches, 0, len(s.categories))
	for _, cat := range s.categories {
		matches, err := s.ranker.Rank(ctx, cat, emb.Embedding, k)
		if err != nil {
			return nil, fmt.Errorf("rank %s: %w", cat, err)
		}
		groups = append(groups, CategoryMatches{Category: cat, Matches: matches})
	}
	return groups, nil
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger)
}
