package report

import (
	"errors"
	"fmt"
	"strings"
)

// Table is a captioned grid attached to a report section.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Section is one heading of the integrated report.
type Section struct {
	Heading      string `json:"heading"`
	Content      string `json:"content"`
	TableCaption string `json:"table_caption,omitempty"`
	Table        *Table `json:"table,omitempty"`
}

// Report is the structured equity research report produced by the integration agent.
type Report struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Validate checks the decoded report before it is handed to a renderer.
func (r *Report) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("report title is empty")
	}
	if len(r.Sections) == 0 {
		return errors.New("report has no sections")
	}
	for i, s := range r.Sections {
		if strings.TrimSpace(s.Heading) == "" {
			return fmt.Errorf("section %d has no heading", i)
		}
		if s.Table == nil {
			continue
		}
		for j, row := range s.Table.Rows {
			if len(row) != len(s.Table.Columns) {
				return fmt.Errorf("section %q table row %d has %d cells, want %d",
					s.Heading, j, len(row), len(s.Table.Columns))
			}
		}
	}
	return nil
}
