package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/fragment"
)

// epsilon keeps zero-norm vectors from dividing by zero; they score 0.
const epsilon = 1e-10

// Flat is an exact brute-force cosine index over an immutable corpus.
// Safe for concurrent use.
type Flat struct {
	corpus *fragment.Corpus
	norms  map[fragment.Category][]float64
}

var _ Ranker = (*Flat)(nil)

// NewFlat precomputes fragment norms for the corpus. A nil corpus ranks nothing.
func NewFlat(corpus *fragment.Corpus) *Flat {
	if corpus == nil {
		corpus = fragment.NewBuilder(0).Build()
	}
	norms := make(map[fragment.Category][]float64, len(fragment.Categories()))
	for _, cat := range fragment.Categories() {
		frags := corpus.Fragments(cat)
		n := make([]float64, len(frags))
		for i, f := range frags {
			n[i] = norm(f.Embedding())
		}
		norms[cat] = n
	}
	return &Flat{corpus: corpus, norms: norms}
}

// Corpus returns the indexed corpus.
func (f *Flat) Corpus() *fragment.Corpus { return f.corpus }

// Rank scores every fragment of cat and returns the best min(k, n).
func (f *Flat) Rank(ctx context.Context, cat fragment.Category, query []float32, k int) ([]Match, error) {
	if !cat.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, cat)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dim := f.corpus.Dimension()
	if dim == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, corpus has %d",
			domain.ErrVectorDimMismatch, len(query), dim)
	}
	if err := domain.CheckFinite(query); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	frags := f.corpus.Fragments(cat)
	if len(frags) == 0 {
		return []Match{}, nil
	}

	qn := norm(query)
	norms := f.norms[cat]
	matches := make([]Match, len(frags))
	for i, frag := range frags {
		matches[i] = Match{
			Fragment: frag,
			Score:    dot(query, frag.Embedding()) / (qn*norms[i] + epsilon),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrVectorDimMismatch, len(a), len(b))
	}
	if err := errors.Join(domain.CheckFinite(a), domain.CheckFinite(b)); err != nil {
		return 0, err
	}
	return dot(a, b) / (norm(a)*norm(b) + epsilon), nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
