package fragment

import (
	"fmt"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Corpus holds the fragments of one analysis run, grouped by category in insertion order.
// Every embedding has the same dimension. A Corpus is never mutated after Build,
// so concurrent readers need no locking.
type Corpus struct {
	dim        int
	byCategory map[Category][]Fragment
	sources    []string
}

// Dimension returns the shared embedding dimension (0 for an empty corpus).
func (c *Corpus) Dimension() int { return c.dim }

// Fragments returns the fragments of a category in insertion order.
// Callers must not modify the returned slice.
func (c *Corpus) Fragments(cat Category) []Fragment { return c.byCategory[cat] }

// Count returns the number of fragments in a category.
func (c *Corpus) Count(cat Category) int { return len(c.byCategory[cat]) }

// Len returns the total number of fragments.
func (c *Corpus) Len() int {
	n := 0
	for _, frags := range c.byCategory {
		n += len(frags)
	}
	return n
}

// Sources returns distinct source document names in first-seen order.
func (c *Corpus) Sources() []string { return c.sources }

// Builder assembles a Corpus and enforces the single-dimension invariant.
type Builder struct {
	dim        int
	byCategory map[Category][]Fragment
	sources    []string
	seen       map[string]bool
}

// NewBuilder creates a corpus builder. dim <= 0 takes the dimension from the first fragment.
func NewBuilder(dim int) *Builder {
	if dim < 0 {
		dim = 0
	}
	return &Builder{
		dim:        dim,
		byCategory: make(map[Category][]Fragment, len(Categories())),
		seen:       make(map[string]bool),
	}
}

// Add appends a fragment to its category.
func (b *Builder) Add(f Fragment) error {
	if !f.Category().IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCategory, f.Category())
	}
	if b.dim == 0 {
		b.dim = f.Dimension()
	}
	if f.Dimension() != b.dim {
		return fmt.Errorf("%w: fragment has %d dimensions, corpus has %d",
			domain.ErrVectorDimMismatch, f.Dimension(), b.dim)
	}

	b.byCategory[f.Category()] = append(b.byCategory[f.Category()], f)
	if src := f.Source(); src != "" && !b.seen[src] {
		b.seen[src] = true
		b.sources = append(b.sources, src)
	}
	return nil
}

// Build returns a snapshot of the fragments added so far.
func (b *Builder) Build() *Corpus {
	byCategory := make(map[Category][]Fragment, len(b.byCategory))
	for cat, frags := range b.byCategory {
		byCategory[cat] = append([]Fragment(nil), frags...)
	}
	return &Corpus{
		dim:        b.dim,
		byCategory: byCategory,
		sources:    append([]string(nil), b.sources...),
	}
}
