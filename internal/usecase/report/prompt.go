package report

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
)

// BuildPrompt lays out analyses and tables as the integration agent's input.
// Absent slots are listed so the report can say which analyses are unavailable.
func BuildPrompt(company string, results []analysis.Result, tables []document.Table) string {
	var sb strings.Builder
	sb.WriteString("Equity Research Report Data\n\n")
	if company != "" {
		fmt.Fprintf(&sb, "Company: %s\n\n", company)
	}

	sb.WriteString("### Analyses ###\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **Agent:** %s\n", i+1, r.AgentName)
		if r.Present() {
			fmt.Fprintf(&sb, "   **Analysis:** %s\n\n", r.Text)
		} else {
			sb.WriteString("   **Analysis:** unavailable\n\n")
		}
	}

	sb.WriteString("### Tables ###\n")
	for _, t := range tables {
		fmt.Fprintf(&sb, "**Table Name:** %s\n", t.Name)
		fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(t.Columns, ", "))
		sb.WriteString("Rows:\n")
		for _, row := range t.Rows {
			fmt.Fprintf(&sb, "  - %s\n", strings.Join(row, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
