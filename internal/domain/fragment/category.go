package fragment

import (
	"fmt"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Category tags where a fragment came from.
type Category string

const (
	// Text is a narrative chunk of the source document.
	Text Category = "text"
	// Table is a serialized extracted table.
	Table Category = "table"
	// Article is a news-article summary.
	Article Category = "article"
)

// Categories returns the fixed retrieval order: text, table, article.
func Categories() []Category {
	return []Category{Text, Table, Article}
}

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	return c == Text || c == Table || c == Article
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCategory, s)
	}
	return c, nil
}
