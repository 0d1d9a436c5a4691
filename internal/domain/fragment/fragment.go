package fragment

import (
	"fmt"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Fragment is one retrievable unit of content with its embedding (immutable value object).
type Fragment struct {
	payload   string
	category  Category
	source    string
	embedding []float32
}

// New creates a Fragment. The embedding is copied so later writes by the caller cannot leak in.
func New(payload string, category Category, embedding []float32) (Fragment, error) {
	if !category.IsValid() {
		return Fragment{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	if len(embedding) == 0 {
		return Fragment{}, fmt.Errorf("fragment embedding is empty: %w", domain.ErrVectorDimMismatch)
	}
	if err := domain.CheckFinite(embedding); err != nil {
		return Fragment{}, fmt.Errorf("fragment embedding: %w", err)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	return Fragment{payload: payload, category: category, embedding: vec}, nil
}

// WithSource returns a copy of the fragment tagged with its source document name.
func (f Fragment) WithSource(source string) Fragment {
	f.source = source
	return f
}

// Payload returns the fragment text handed to the generation service.
func (f Fragment) Payload() string { return f.payload }

// Category returns the fragment's source category.
func (f Fragment) Category() Category { return f.category }

// Source returns the originating document name, if known.
func (f Fragment) Source() string { return f.source }

// Embedding returns the fragment vector. Callers must not modify it.
func (f Fragment) Embedding() []float32 { return f.embedding }

// Dimension returns the embedding length.
func (f Fragment) Dimension() int { return len(f.embedding) }
