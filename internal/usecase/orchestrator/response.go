package orchestrator

import (
	"strings"

	"github.com/kailas-cloud/equidex/internal/domain/analysis"
)

// ShapeName is the structured response name sent to the generation provider.
const ShapeName = "analysis_response"

// AnalysisResponse is the shape every analysis agent must answer with.
type AnalysisResponse struct {
	Analysis string `json:"analysis" jsonschema_description:"The complete analysis text"`
}

// Validate rejects responses without analysis text.
func (r *AnalysisResponse) Validate() error {
	if strings.TrimSpace(r.Analysis) == "" {
		return analysis.ErrNoAnalysis
	}
	return nil
}
