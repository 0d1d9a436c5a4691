package analysis

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Step names the pipeline stage at which an agent task failed.
type Step string

// Task pipeline steps.
const (
	StepRetrieve Step = "retrieve"
	StepRender   Step = "render"
	StepGenerate Step = "generate"
	StepValidate Step = "validate"
	StepTimeout  Step = "timeout"
)

// ErrNoAnalysis is recorded when a response decodes but carries no analysis text.
var ErrNoAnalysis = errors.New("analysis text is empty")

// Failure explains why a slot holds no analysis.
type Failure struct {
	Step Step
	Err  error
}

// Result is one output slot: either an analysis or an absence marker for AgentName.
type Result struct {
	AgentName string
	Text      string
	Failure   *Failure
}

// Success creates a slot holding an analysis.
func Success(agentName, text string) Result {
	return Result{AgentName: agentName, Text: text}
}

// Missing creates an absence marker for agentName.
func Missing(agentName string, step Step, err error) Result {
	return Result{AgentName: agentName, Failure: &Failure{Step: step, Err: err}}
}

// Present reports whether the slot holds an analysis.
func (r Result) Present() bool { return r.Failure == nil }

type resultJSON struct {
	Agent    string `json:"agent"`
	Analysis string `json:"analysis,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
	Step     Step   `json:"step,omitempty"`
	Error    string `json:"error,omitempty"`
}

// MarshalJSON encodes the slot as {"agent","analysis"} or {"agent","missing","step","error"}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Agent: r.AgentName}
	if r.Present() {
		out.Analysis = r.Text
		return json.Marshal(out)
	}
	out.Missing = true
	out.Step = r.Failure.Step
	if r.Failure.Err != nil {
		out.Error = r.Failure.Err.Error()
	}
	return json.Marshal(out)
}

// Run is one complete orchestration over an agent set.
type Run struct {
	ID         uuid.UUID `json:"run_id"`
	Set        string    `json:"set"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// NewRun starts a run record with a fresh ID.
func NewRun(set string) Run {
	return Run{ID: uuid.New(), Set: set, StartedAt: time.Now().UTC()}
}

// Finish records the results and completion time.
func (r *Run) Finish(results []Result) {
	r.Results = results
	r.FinishedAt = time.Now().UTC()
}

// MissingAgents lists agents without an analysis, in slot order.
func (r Run) MissingAgents() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Present() {
			out = append(out, res.AgentName)
		}
	}
	return out
}

// Present counts slots holding an analysis.
func (r Run) Present() int {
	n := 0
	for _, res := range r.Results {
		if res.Present() {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
