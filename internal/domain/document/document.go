package document

import (
	"fmt"
	"strings"
)

// MaxTextSize is the maximum narrative text size of one document in bytes.
const MaxTextSize = 8 << 20 // 8MB

// Table is one extracted financial table.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Article is one news item; HTML, when set, is parsed for the article body.
type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Document is a pre-extracted financial report plus related news.
// PDF text and table extraction happen upstream.
type Document struct {
	Name     string    `json:"name"`
	Date     string    `json:"date,omitempty"`
	Text     string    `json:"text,omitempty"`
	Tables   []Table   `json:"tables,omitempty"`
	Articles []Article `json:"articles,omitempty"`
}

// Validate checks a document before ingestion.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("document name is required")
	}
	if len(d.Text) > MaxTextSize {
		return fmt.Errorf("document %q text too large (max %d bytes)", d.Name, MaxTextSize)
	}
	for i, t := range d.Tables {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("document %q table %d: %w", d.Name, i, err)
		}
	}
	for i, a := range d.Articles {
		if strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.Summary) == "" && a.HTML == "" {
			return fmt.Errorf("document %q article %d is empty", d.Name, i)
		}
	}
	return nil
}

// Validate checks that every row has one cell per column.
func (t Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("table %q row %d has %d cells, want %d", t.Name, i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Text renders the table as the deterministic block stored in the corpus.
func (t Table) Text() string {
	var sb strings.Builder
	name := t.Name
	if name == "" {
		name = "untitled"
	}
	sb.WriteString("Table: ")
	sb.WriteString(name)
	sb.WriteString("\nColumns: ")
	sb.WriteString(strings.Join(t.Columns, ", "))
	sb.WriteString("\nRows:")
	for _, row := range t.Rows {
		sb.WriteString("\n- ")
		sb.WriteString(strings.Join(row, ", "))
	}
	return sb.String()
}

// Text renders the article as title and summary.
func (a Article) Text() string {
	title, summary := strings.TrimSpace(a.Title), strings.TrimSpace(a.Summary)
	switch {
	case title == "":
		return summary
	case summary == "":
		return title
	default:
		return title + "\n" + summary
	}
}
