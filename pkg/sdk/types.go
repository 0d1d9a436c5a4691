package equidex

import (
	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	domreport "github.com/kailas-cloud/equidex/internal/domain/report"
	pipelineuc "github.com/kailas-cloud/equidex/internal/usecase/pipeline"
)

// Input documents.
type (
	Document = document.Document
	Table    = document.Table
	Article  = document.Article
)

// AgentSet selects which agents run.
type AgentSet = agent.Set

// Agent sets.
const (
	SetPrimary  = agent.SetPrimary
	SetExtended = agent.SetExtended
	SetAll      = agent.SetAll
)

// Agent is one catalog entry.
type Agent = agent.Agent

// Run outcome types.
type (
	Run    = analysis.Run
	Result = analysis.Result
	Report = domreport.Report
	Usage  = domain.UsageSnapshot
)

// AnalyzeRequest is one analysis over caller-supplied documents.
// Zero TokenBudget and TopK keep the client defaults.
type AnalyzeRequest = pipelineuc.Request

// AnalyzeResult is the outcome of Analyze.
type AnalyzeResult = pipelineuc.Result

// Match is one retrieved fragment.
type Match struct {
	Category string
	Source   string
	Text     string
	Score    float64
}
