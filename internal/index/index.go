// Package index ranks corpus fragments against a query vector.
package index

import (
	"context"

	"github.com/kailas-cloud/equidex/internal/domain/fragment"
)

// Match is one ranked fragment.
type Match struct {
	Fragment fragment.Fragment
	Score    float64
}

// Ranker returns the top-k fragments of one category for a query vector.
// Matches are ordered by descending score; ties keep corpus insertion order.
type Ranker interface {
	Rank(ctx context.Context, cat fragment.Category, query []float32, k int) ([]Match, error)
}
